package claudemon

import (
	"encoding/json"
	"time"

	"claudebot/pkg/claudecli"
)

// HealthSnapshot is the last known CLI health state. It is overwritten at the
// end of every monitor tick, so LastCheck always advances.
//
// Invariant: Reason is empty and ResetExpected is nil whenever Available is
// true; ResetExpected is only set for limit reasons.
type HealthSnapshot struct {
	Available     bool
	LastCheck     time.Time // zero means never checked
	Reason        claudecli.Reason
	ResetExpected *time.Time
}

// Label derives the state label used in transition records.
func (s HealthSnapshot) Label() string {
	return claudecli.StateLabel(s.Available, s.Reason)
}

type snapshotJSON struct {
	Available     bool    `json:"available"`
	LastCheck     *string `json:"last_check"`
	Reason        *string `json:"reason"`
	ResetExpected *string `json:"reset_expected"`
}

func (s HealthSnapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{Available: s.Available}
	if !s.LastCheck.IsZero() {
		v := s.LastCheck.UTC().Format(time.RFC3339)
		out.LastCheck = &v
	}
	if s.Reason != "" {
		v := string(s.Reason)
		out.Reason = &v
	}
	if s.ResetExpected != nil {
		v := s.ResetExpected.UTC().Format(time.RFC3339)
		out.ResetExpected = &v
	}
	return json.Marshal(out)
}

func (s *HealthSnapshot) UnmarshalJSON(b []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = HealthSnapshot{Available: in.Available}
	if in.LastCheck != nil {
		t, err := time.Parse(time.RFC3339, *in.LastCheck)
		if err != nil {
			return err
		}
		s.LastCheck = t
	}
	if in.Reason != nil {
		s.Reason = claudecli.Reason(*in.Reason)
	}
	if in.ResetExpected != nil {
		t, err := time.Parse(time.RFC3339, *in.ResetExpected)
		if err != nil {
			return err
		}
		s.ResetExpected = &t
	}
	return nil
}

// TransitionRecord is one confirmed state change, appended to the transition
// log and never rewritten.
type TransitionRecord struct {
	Timestamp time.Time `json:"-"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	// DurationUnavailable is seconds spent outside the available state,
	// set only on transitions into available.
	DurationUnavailable *float64   `json:"duration_unavailable"`
	Platform            string     `json:"platform"`
	ResetExpected       *time.Time `json:"-"`
	ResetActual         *time.Time `json:"-"`
}

type transitionJSON struct {
	Timestamp           string   `json:"timestamp"`
	From                string   `json:"from"`
	To                  string   `json:"to"`
	DurationUnavailable *float64 `json:"duration_unavailable"`
	Platform            string   `json:"platform"`
	ResetExpected       *string  `json:"reset_expected"`
	ResetActual         *string  `json:"reset_actual"`
}

func (r TransitionRecord) MarshalJSON() ([]byte, error) {
	out := transitionJSON{
		Timestamp:           r.Timestamp.UTC().Format(time.RFC3339),
		From:                r.From,
		To:                  r.To,
		DurationUnavailable: r.DurationUnavailable,
		Platform:            r.Platform,
	}
	if r.ResetExpected != nil {
		v := r.ResetExpected.UTC().Format(time.RFC3339)
		out.ResetExpected = &v
	}
	if r.ResetActual != nil {
		v := r.ResetActual.UTC().Format(time.RFC3339)
		out.ResetActual = &v
	}
	return json.Marshal(out)
}

func (r *TransitionRecord) UnmarshalJSON(b []byte) error {
	var in transitionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return err
	}
	*r = TransitionRecord{
		Timestamp:           ts,
		From:                in.From,
		To:                  in.To,
		DurationUnavailable: in.DurationUnavailable,
		Platform:            in.Platform,
	}
	if in.ResetExpected != nil {
		t, err := time.Parse(time.RFC3339, *in.ResetExpected)
		if err != nil {
			return err
		}
		r.ResetExpected = &t
	}
	if in.ResetActual != nil {
		t, err := time.Parse(time.RFC3339, *in.ResetActual)
		if err != nil {
			return err
		}
		r.ResetActual = &t
	}
	return nil
}

// pendingNote holds at most one recovery/error message deferred by the quiet
// window. In-memory only; newest wins.
type pendingNote struct {
	Text      string
	CreatedAt time.Time
}
