package gasmon

import (
	"fmt"
	"strconv"
)

// LineWidth is the number of characters per display row.
const LineWidth = 16

type Color struct {
	R, G, B uint8
}

var (
	White  = Color{255, 255, 255}
	Yellow = Color{255, 160, 0}
	Red    = Color{255, 0, 0}
)

func LevelColor(l Level) Color {
	switch l {
	case Alert:
		return Red
	case Warning:
		return Yellow
	}
	return White
}

// Display renders the device status.
type Display interface {
	Render(line1, line2 string, c Color)
}

// CharLCD is a two row character display with an RGB backlight.
type CharLCD interface {
	Clear()
	SetCursor(col, row int)
	Print(text string)
	SetBacklightColor(r, g, b uint8)
}

// LCDDisplay drives a CharLCD and skips redraws when nothing changed.
type LCDDisplay struct {
	lcd   CharLCD
	lines [2]string
	color Color
	drawn bool
}

func NewLCDDisplay(lcd CharLCD) *LCDDisplay {
	return &LCDDisplay{lcd: lcd}
}

func (d *LCDDisplay) Render(line1, line2 string, c Color) {
	line1, line2 = fit(line1), fit(line2)
	if d.drawn && d.lines == [2]string{line1, line2} && d.color == c {
		return
	}
	if !d.drawn || d.color != c {
		d.lcd.SetBacklightColor(c.R, c.G, c.B)
	}
	d.lcd.Clear()
	d.lcd.SetCursor(0, 0)
	d.lcd.Print(line1)
	d.lcd.SetCursor(0, 1)
	d.lcd.Print(line2)

	d.lines = [2]string{line1, line2}
	d.color = c
	d.drawn = true
}

// StatusLines formats the readings and battery for a 16x2 display, e.g.
// "CO:12 CH4:3400" and "CO2:650 B:87%". Stale values carry a '?' suffix and a
// low battery a trailing '!'.
func StatusLines(readings []GasReading, battery int) (string, string) {
	var co, ch4, co2 string
	for _, r := range readings {
		v := compact(r.PPM)
		if r.Stale {
			v += "?"
		}
		switch r.Species {
		case CO:
			co = v
		case CH4:
			ch4 = v
		case CO2:
			co2 = v
		}
	}
	line2 := fmt.Sprintf("CO2:%s B:%d%%", co2, battery)
	if BatteryLevel(battery) != Normal {
		line2 += "!"
	}
	return fit(fmt.Sprintf("CO:%s CH4:%s", co, ch4)), fit(line2)
}

func compact(ppm uint32) string {
	switch {
	case ppm < 10000:
		return strconv.FormatUint(uint64(ppm), 10)
	case ppm < 10000000:
		return strconv.FormatUint(uint64(ppm/1000), 10) + "k"
	}
	return strconv.FormatUint(uint64(ppm/1000000), 10) + "M"
}

func fit(s string) string {
	if len(s) > LineWidth {
		return s[:LineWidth]
	}
	return s
}
