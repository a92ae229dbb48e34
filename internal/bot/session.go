package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/example/braincheck/internal/report"
)

type state int

const (
	stateName state = iota + 1
	stateAge
	stateGender
	stateSymptoms
	stateReasons
	stateImage
)

const (
	promptName     = "Welcome to the MRI screening assistant. What is the patient's name?"
	promptAge      = "Patient's age?"
	promptGender   = "Gender? (Male / Female / Prefer not to say)"
	promptSymptoms = "List symptoms, comma-separated (e.g. Memory loss, Confusion, Headaches)."
	promptReasons  = "Reason for the scan, comma-separated (e.g. Routine check, Family history)."
	promptImage    = "Upload the MRI image as a photo."
	remindImage    = "Please send the MRI scan as a photo, or /cancel to stop."
)

type session struct {
	state   state
	patient report.Patient
	updated time.Time
}

// sessions tracks one intake conversation per chat. Stale conversations
// expire so an abandoned intake does not linger forever.
type sessions struct {
	mu  sync.Mutex
	m   map[int64]*session
	ttl time.Duration
}

func newSessions(ttl time.Duration) *sessions {
	return &sessions{m: make(map[int64]*session), ttl: ttl}
}

// begin starts (or restarts) an intake conversation and returns the first prompt.
func (s *sessions) begin(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[chatID] = &session{state: stateName, updated: time.Now()}
	return promptName
}

// cancel drops the conversation. Reports whether one was active.
func (s *sessions) cancel(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.m[chatID]
	delete(s.m, chatID)
	return ok
}

// advance feeds a text answer into the conversation and returns the next
// prompt. active is false when no intake is in progress for this chat.
func (s *sessions) advance(chatID int64, text string) (prompt string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(chatID)
	if sess == nil {
		return "", false
	}
	sess.updated = time.Now()

	text = strings.TrimSpace(text)
	switch sess.state {
	case stateName:
		sess.patient.Name = text
		sess.state = stateAge
		return promptAge, true
	case stateAge:
		sess.patient.Age = text
		sess.state = stateGender
		return promptGender, true
	case stateGender:
		sess.patient.Gender = text
		sess.state = stateSymptoms
		return promptSymptoms, true
	case stateSymptoms:
		sess.patient.Symptoms = splitList(text)
		sess.state = stateReasons
		return promptReasons, true
	case stateReasons:
		sess.patient.Reasons = splitList(text)
		sess.state = stateImage
		return promptImage, true
	default:
		return remindImage, true
	}
}

// awaitingImage reports whether the chat's intake has reached the photo step
// and returns the collected patient details.
func (s *sessions) awaitingImage(chatID int64) (report.Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(chatID)
	if sess == nil || sess.state != stateImage {
		return report.Patient{}, false
	}
	return sess.patient, true
}

// finish ends the conversation after the report has been delivered.
func (s *sessions) finish(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, chatID)
}

// get returns the live session for a chat, expiring stale ones. Caller must
// hold the lock.
func (s *sessions) get(chatID int64) *session {
	sess, ok := s.m[chatID]
	if !ok {
		return nil
	}
	if s.ttl > 0 && time.Since(sess.updated) > s.ttl {
		delete(s.m, chatID)
		return nil
	}
	return sess
}

func splitList(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
