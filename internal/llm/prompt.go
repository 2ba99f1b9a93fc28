package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// ErrMalformedReply indicates the model output contained no JSON object or
// one that fails the reply schema.
var ErrMalformedReply = errors.New("malformed model reply")

// Reply is the structured output the interviewer model must produce for
// every turn. The backend trusts its content beyond shape checking: topic
// flow, completion, and scoring decisions all come from the model.
type Reply struct {
	Message    string  `json:"message"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic,omitempty"`
	Conclude   bool    `json:"conclude"`
	Report     *Report `json:"report,omitempty"`
}

// Report carries the final assessment, present only on the concluding turn.
type Report struct {
	Summary string       `json:"summary"`
	Scores  []ReplyScore `json:"scores"`
}

// ReplyScore is one per-topic score line in the final report.
type ReplyScore struct {
	Skill    string  `json:"skill"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Comment  string  `json:"comment,omitempty"`
}

const replySchemaJSON = `{
  "type": "object",
  "required": ["message", "intent", "confidence", "conclude"],
  "properties": {
    "message":    {"type": "string", "minLength": 1},
    "intent":     {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "topic":      {"type": "string"},
    "conclude":   {"type": "boolean"},
    "report": {
      "type": "object",
      "required": ["summary", "scores"],
      "properties": {
        "summary": {"type": "string"},
        "scores": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["skill", "score", "max_score"],
            "properties": {
              "skill":     {"type": "string"},
              "score":     {"type": "number"},
              "max_score": {"type": "number"},
              "comment":   {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var replySchema = mustSchema(replySchemaJSON)

func mustSchema(src string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		panic(fmt.Sprintf("compile reply schema: %v", err))
	}
	return rs
}

var difficultyNames = map[int]string{1: "easy", 2: "medium", 3: "hard"}

// BuildSystemInstruction renders the interviewer rules for one interview: the
// total duration window (1x to 1.5x the configured length), per-topic minimum
// durations and weights, any prepared questions, and the JSON output
// contract. The resulting string is the system message for every turn of the
// session.
func BuildSystemInstruction(iv *domain.Interview) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a professional technical interviewer conducting an interview titled %q.\n", iv.Title)
	if iv.Description != "" {
		fmt.Fprintf(&b, "Interview description: %s\n", iv.Description)
	}
	minDur := iv.DurationMin
	maxDur := (iv.DurationMin*3 + 1) / 2
	fmt.Fprintf(&b, "The interview must last at least %d minutes and at most %d minutes of conversation.\n", minDur, maxDur)

	b.WriteString("\nTopics to cover, in order:\n")
	for i, topic := range iv.Topics {
		diff := difficultyNames[topic.Difficulty]
		fmt.Fprintf(&b, "%d. %s (difficulty: %s, weight: %d%%, minimum time: %d minutes)\n",
			i+1, topic.Skill, diff, topic.WeightPct, topic.DurationMin)
		for _, q := range topicQuestions(topic) {
			fmt.Fprintf(&b, "   - Suggested question: %s\n", q)
		}
	}

	b.WriteString(`
Rules:
- Ask one question at a time and wait for the candidate's answer.
- Spend at least the minimum time on each topic before moving on.
- Probe deeper when an answer is superficial; do not reveal solutions.
- Stay on the listed topics; politely decline unrelated requests.
- When every topic has been covered and the duration window allows, conclude
  the interview and produce the final report.

Output contract: every reply MUST be a single JSON object with the fields
"message" (what you say to the candidate), "intent" (a short label for the
move you are making, e.g. "ask", "probe", "transition", "conclude"),
"confidence" (0..1), optional "topic" (the topic currently under discussion),
and "conclude" (true only on your final turn). On the concluding turn also
include "report": {"summary": <overall assessment>, "scores": [{"skill",
"score", "max_score", "comment"}, ...]} with one entry per topic, where
max_score reflects the topic weight. Output nothing outside the JSON object.
`)
	return b.String()
}

func topicQuestions(t domain.InterviewTopic) []string {
	if t.Questions == "" {
		return nil
	}
	var qs []string
	if err := json.Unmarshal([]byte(t.Questions), &qs); err != nil {
		return nil
	}
	return qs
}

// ParseReply extracts the JSON object from raw model output and validates it
// against the reply schema. Surrounding prose or code fences are tolerated;
// shape violations return ErrMalformedReply.
func ParseReply(ctx context.Context, raw string) (*Reply, error) {
	obj := extractJSON(raw)
	if obj == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrMalformedReply)
	}

	verrs, err := replySchema.ValidateBytes(ctx, []byte(obj))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, sb.String())
	}

	var reply Reply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &reply, nil
}

// extractJSON returns the first balanced top-level JSON object in s, or "".
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
