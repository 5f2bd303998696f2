package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/alepar/gasmon/gasmon"
)

// consoleLCD stands in for the character display driver and logs every frame.
type consoleLCD struct {
	rows [2][]byte
	col  int
	row  int
	rgb  [3]uint8
}

func (c *consoleLCD) Clear() {
	c.rows = [2][]byte{}
	c.col, c.row = 0, 0
}

func (c *consoleLCD) SetCursor(col, row int) {
	c.col, c.row = col, row
}

func (c *consoleLCD) Print(text string) {
	if c.row < 0 || c.row >= len(c.rows) {
		return
	}
	line := c.rows[c.row]
	for len(line) < c.col {
		line = append(line, ' ')
	}
	line = append(line[:c.col], text...)
	if len(line) > gasmon.LineWidth {
		line = line[:gasmon.LineWidth]
	}
	c.rows[c.row] = line
	c.col = len(line)

	if c.row == len(c.rows)-1 {
		log.WithField("backlight", c.rgb).Debugf("display |%-16s|%-16s|", c.rows[0], c.rows[1])
	}
}

func (c *consoleLCD) SetBacklightColor(r, g, b uint8) {
	c.rgb = [3]uint8{r, g, b}
}
