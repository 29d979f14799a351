package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/roverhub/rovercam/motor"
)

// ErrBadJSON indicates the command body could not be parsed even after
// delimiter repair. It is surfaced to the calling client; the
// last-command state is left untouched.
var ErrBadJSON = errors.New("bad json")

// Gateway normalizes incoming command bodies and forwards them
// downstream.
type Gateway struct {
	link  motor.Link
	state *State
	tp    TimeProvider
}

// New wires a Gateway over link. A nil tp selects the system clock.
func New(link motor.Link, tp TimeProvider) *Gateway {
	return &Gateway{
		link:  link,
		state: NewState(),
		tp:    getTimeProvider(tp),
	}
}

// State exposes the last-command state for status reporting.
func (g *Gateway) State() *State {
	return g.state
}

// SendStop forwards the boot-time Stop command and seeds the
// last-command state with it.
func (g *Gateway) SendStop() error {
	cmd := Command{Motion: MotionStop, Speed: 0}
	err := g.forward(cmd)
	g.state.Record(cmd, g.tp.Now())
	return err
}

// parseBody extracts the alias-keyed fields from a repaired body.
//
// Key lookup is explicit because encoding/json matches struct fields
// case-insensitively, which would collapse the "M"/"m" and "v"/"V"
// alias pairs and lose their precedence order.
func parseBody(body []byte) (motion string, speed int, err error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}

	motion = "Unknown"
	for _, key := range []string{"M", "m"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", 0, fmt.Errorf("%w: motion field %q", ErrBadJSON, key)
		}
		motion = s
		break
	}

	speed = -1
	for _, key := range []string{"v", "V"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", 0, fmt.Errorf("%w: speed field %q", ErrBadJSON, key)
		}
		speed = n
		break
	}
	return motion, speed, nil
}

// RepairBody trims the accumulated body and appends the closing brace
// some clients drop.
func RepairBody(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !bytes.HasSuffix(body, []byte("}")) {
		body = append(body, '}')
	}
	return body
}

// HandleBody processes one accumulated request body: repair the
// delimiter, parse the alias-keyed command, clamp and normalize,
// forward downstream and record the result.
//
// Parse failures return ErrBadJSON with the state unchanged. A
// downstream send failure is logged but does not fail the command; the
// link owns its own recovery.
func (g *Gateway) HandleBody(body []byte) (Command, error) {
	rawMotion, rawSpeed, err := parseBody(RepairBody(body))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleBody",
			"error":    err,
			"raw":      string(body),
		}).Warn("Command rejected")
		return Command{}, err
	}

	cmd := Command{
		Motion: NormalizeMotion(rawMotion),
		Speed:  ClampSpeed(rawSpeed),
	}
	if err := g.forward(cmd); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleBody",
			"motion":   cmd.Motion,
			"speed":    cmd.Speed,
			"error":    err,
		}).Error("Downstream send failed")
	}
	g.state.Record(cmd, g.tp.Now())

	logrus.WithFields(logrus.Fields{
		"function": "HandleBody",
		"motion":   cmd.Motion,
		"speed":    cmd.Speed,
	}).Info("Command accepted")
	return cmd, nil
}

func (g *Gateway) forward(cmd Command) error {
	return g.link.Send(string(cmd.Motion), cmd.Speed)
}
