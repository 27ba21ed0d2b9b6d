package transport

import (
	"fmt"
	"math"
	"strconv"

	bridge "daikin_bridge"
)

// Resource paths on the unit.
const (
	statusResource   = "/dsiot/edge/adr_0100.dgc_status"
	outdoorResource  = "/dsiot/edge/adr_0200.dgc_status"
	powerResource    = "/dsiot/edge/adr_0100.i_power.week_power"
	identityResource = "/dsiot/edge.adp_i"

	statusResourceFiltered  = statusResource + "?filter=pv,pt,md"
	outdoorResourceFiltered = outdoorResource + "?filter=pv,pt,md"
	powerResourceFiltered   = powerResource + "?filter=pv,pt,md"
)

// Operating mode wire values (e_1002/e_3001/p_01).
var modeFromHex = map[string]string{
	"0300": bridge.ModeAuto,
	"0200": bridge.ModeCool,
	"0100": bridge.ModeHeat,
	"0000": bridge.ModeFan,
	"0500": bridge.ModeDry,
}

var modeToHex = map[string]string{
	bridge.ModeAuto: "0300",
	bridge.ModeCool: "0200",
	bridge.ModeHeat: "0100",
	bridge.ModeFan:  "0000",
	bridge.ModeDry:  "0500",
}

// Fan rate wire values in e_3001 (COOL/HEAT/FAN modes).
var fanFromHex = map[string]string{
	"0A00": bridge.FanAuto,
	"0B00": bridge.FanQuiet,
	"0300": bridge.FanLevel1,
	"0400": bridge.FanLevel2,
	"0500": bridge.FanLevel3,
	"0600": bridge.FanLevel4,
	"0700": bridge.FanLevel5,
}

var fanToHex = map[string]string{
	bridge.FanAuto:   "0A00",
	bridge.FanQuiet:  "0B00",
	bridge.FanLevel1: "0300",
	bridge.FanLevel2: "0400",
	bridge.FanLevel3: "0500",
	bridge.FanLevel4: "0600",
	bridge.FanLevel5: "0700",
}

// AUTO mode keeps its fan rate in e_3003/p_2A with short codes.
var fanFromHexAuto = map[string]string{
	"00": bridge.FanAuto,
	"0B": bridge.FanQuiet,
	"03": bridge.FanLevel1,
	"04": bridge.FanLevel2,
	"05": bridge.FanLevel3,
	"06": bridge.FanLevel4,
	"07": bridge.FanLevel5,
}

var fanToHexAuto = map[string]string{
	bridge.FanAuto:   "00",
	bridge.FanQuiet:  "0B",
	bridge.FanLevel1: "03",
	bridge.FanLevel2: "04",
	bridge.FanLevel3: "05",
	bridge.FanLevel4: "06",
	bridge.FanLevel5: "07",
}

// Target temperature attribute depends on the mode. FAN and DRY have no
// settable set-point at all.
var tempAttrByMode = map[string]string{
	bridge.ModeCool: "p_02",
	bridge.ModeHeat: "p_03",
	bridge.ModeAuto: "p_1D",
}

// Fan rate attribute also depends on the mode. DRY fan is always
// automatic and has no attribute.
var fanAttrByMode = map[string]string{
	bridge.ModeAuto: "p_2A", // lives in e_3003
	bridge.ModeCool: "p_09",
	bridge.ModeHeat: "p_0A",
	bridge.ModeFan:  "p_28",
}

// Swing attribute pair (vertical, horizontal) per mode. HEAT uses its
// own pair on this firmware.
func swingAttrsForMode(mode string) (vertical, horizontal string, ok bool) {
	switch mode {
	case bridge.ModeAuto, bridge.ModeCool, bridge.ModeFan, bridge.ModeDry:
		return "p_05", "p_06", true
	case bridge.ModeHeat:
		return "p_07", "p_08", true
	}
	return "", "", false
}

const (
	swingAxisOn  = "0F0000"
	swingAxisOff = "000000"
)

// encodeTemperature renders a set-point as the firmware's half-degree
// hex encoding (21.5 °C -> 0x2b -> "2b"). Off-grid values round to the
// nearest representable half degree; flooring here would make a written
// value disagree with its own read-back.
func encodeTemperature(temp float64) string {
	return fmt.Sprintf("%02x", int(math.Round(temp*2)))
}

// decodeTemperature parses a half-degree hex value back into °C. Some
// firmware revisions pad the value to four digits; only the leading
// byte carries the temperature.
func decodeTemperature(hexVal string) (float64, error) {
	if len(hexVal) > 2 {
		hexVal = hexVal[:2]
	}
	v, err := strconv.ParseInt(hexVal, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad temperature value %q", ErrProtocol, hexVal)
	}
	return float64(v) / 2, nil
}

// decodeWholeDegrees parses sensor values the unit reports in whole
// degrees (indoor temperature, humidity).
func decodeWholeDegrees(hexVal string) (float64, error) {
	v, err := strconv.ParseInt(hexVal, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad sensor value %q", ErrProtocol, hexVal)
	}
	return float64(v), nil
}
