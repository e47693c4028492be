// Package runlog records what a protocol run did and how long it took.
package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
)

// TSVHeader is the first line of a time log.
const TSVHeader = "STEP\texecution\tdescription\twait_time\texecution_time"

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteTSV writes the time log in the station log format. Wait times are
// in seconds.
func WriteTSV(w io.Writer, results []protocol.Result) error {
	if _, err := fmt.Fprintln(w, TSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		_, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			formatBool(r.Execute),
			r.Description,
			strconv.FormatFloat(r.Wait.Seconds(), 'f', -1, 64),
			r.Elapsed,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

type jsonStep struct {
	Description string  `json:"description"`
	Execute     bool    `json:"Execute"`
	WaitTime    float64 `json:"wait_time,omitempty"`
	Time        string  `json:"Time:,omitempty"`
}

// WriteJSON writes the step table keyed by step number.
func WriteJSON(w io.Writer, results []protocol.Result) error {
	steps := make(map[string]jsonStep, len(results))
	for _, r := range results {
		s := jsonStep{Description: r.Description, Execute: r.Execute, WaitTime: r.Wait.Seconds()}
		if r.Execute {
			s.Time = r.Elapsed.String()
		}
		steps[strconv.Itoa(r.ID)] = s
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(steps)
}
