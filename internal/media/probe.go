package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrProberUnavailable indicates no prober was configured.
var ErrProberUnavailable = errors.New("media prober unavailable")

// ProbeResult is what a probe learns about a media file.
type ProbeResult struct {
	Dimensions Dimensions `json:"dimensions"`
	Duration   float64    `json:"duration"`
}

// Prober reads frame size and duration from a local path or URL.
type Prober interface {
	Probe(ctx context.Context, input string) (ProbeResult, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, input string) (ProbeResult, error)

func (f ProberFunc) Probe(ctx context.Context, input string) (ProbeResult, error) { return f(ctx, input) }

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFProbe shells out to ffprobe.
type FFProbe struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFProbe constructs a Prober around the ffprobe binary.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &FFProbe{
		Binary: binary,
		Args: []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation:format=duration",
			"-of", "json",
		},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

type ffprobeOutput struct {
	Streams []struct {
		Width  int               `json:"width"`
		Height int               `json:"height"`
		Tags   map[string]string `json:"tags"`
		Side   []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against input and parses its JSON report.
func (p *FFProbe) Probe(ctx context.Context, input string) (ProbeResult, error) {
	if p == nil {
		return ProbeResult{}, ErrProberUnavailable
	}
	run := p.Run
	if run == nil {
		run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// -i keeps an input that starts with "-" from being read as an option.
	args := append(append([]string{}, p.Args...), "-i", input)
	out, err := run(execCtx, p.Binary, args...)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe %s: %w", input, err)
	}
	return parseFFProbe(out)
}

func parseFFProbe(out []byte) (ProbeResult, error) {
	var payload ffprobeOutput
	if err := json.Unmarshal(out, &payload); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(payload.Streams) == 0 {
		return ProbeResult{}, errors.New("ffprobe found no video stream")
	}

	stream := payload.Streams[0]
	width, height := stream.Width, stream.Height

	// Phones record sensor-native landscape frames plus a display rotation.
	rotation := 0.0
	if tag, ok := stream.Tags["rotate"]; ok {
		rotation, _ = strconv.ParseFloat(tag, 64)
	}
	for _, side := range stream.Side {
		if side.Rotation != 0 {
			rotation = side.Rotation
		}
	}
	if r := math.Mod(math.Abs(rotation), 180); r == 90 {
		width, height = height, width
	}

	dims, err := NewDimensions(width, height)
	if err != nil {
		return ProbeResult{}, err
	}

	var duration float64
	if payload.Format.Duration != "" {
		duration, _ = strconv.ParseFloat(payload.Format.Duration, 64)
	}
	return ProbeResult{Dimensions: dims, Duration: duration}, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
