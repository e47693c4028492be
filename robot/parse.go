package robot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
)

// Status is the realtime state report of the device.
type Status struct {
	State  string
	Tips   [2]bool
	Magnet bool
	Temp   float64
}

// ProbeResult is a probe contact report.
type ProbeResult struct {
	coord.Point
	Valid bool
}

func parseCoords(data string) (p coord.Point, err error) {
	parts := strings.Split(data, ",")
	if len(parts) != 3 {
		return p, errors.New("invalid number of elements")
	}
	p.X, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return p, err
	}
	p.Y, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return p, err
	}
	p.Z, err = strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

func parseProbe(data string) (*ProbeResult, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "[")
	data = strings.TrimSuffix(data, "]")
	parts := strings.Split(data, ":")
	var err error
	switch parts[0] {
	case "PRB":
		if len(parts) != 3 {
			return nil, errors.New("malformed probe report: " + data)
		}
		var res ProbeResult
		res.Valid = parts[2] == "1"
		res.Point, err = parseCoords(parts[1])
		if err != nil {
			return nil, err
		}

		return &res, nil
	}

	return nil, errors.New("unknown PUSH message: " + data)
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, errors.New("invalid flag: " + s)
}

func parseStatus(stat Status, data string) (*Status, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "<")
	data = strings.TrimSuffix(data, ">")
	parts := strings.Split(data, "|")
	stat.State = parts[0]
	var err error
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			return nil, errors.New("malformed status field: " + s)
		}
		switch sParts[0] {
		case "Tip":
			tips := strings.Split(sParts[1], ",")
			if len(tips) != 2 {
				return nil, errors.New("invalid tip state: " + sParts[1])
			}
			for i, t := range tips {
				stat.Tips[i], err = parseFlag(t)
				if err != nil {
					return nil, err
				}
			}
		case "Mag":
			stat.Magnet, err = parseFlag(sParts[1])
		case "Temp":
			stat.Temp, err = strconv.ParseFloat(sParts[1], 64)
		}
		if err != nil {
			return nil, err
		}
	}
	return &stat, nil
}
