package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// ExecScorer runs a command per text. The command reads {"text": ...} on
// stdin and writes {"score": <float>} on stdout.
type ExecScorer struct {
	cmd []string
}

type execRequest struct {
	Text string `json:"text"`
}

type execResponse struct {
	Score *float64 `json:"score"`
}

func NewExecScorer(command string) (*ExecScorer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse sentiment command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("sentiment command empty")
	}
	return &ExecScorer{cmd: args}, nil
}

func (s *ExecScorer) Score(ctx context.Context, text string) (float64, error) {
	input, err := json.Marshal(execRequest{Text: text})
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("sentiment exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return 0, fmt.Errorf("decode sentiment exec response: %w", err)
	}
	if resp.Score == nil || math.IsNaN(*resp.Score) {
		return 0, nil
	}
	return clamp(*resp.Score), nil
}
