// Package video decodes recorded interview videos with FFmpeg.
//
// ffprobe supplies stream geometry and timing; ffmpeg decodes frames to raw
// RGB on a pipe so the behavioral pipeline can read them one at a time
// without writing frames to disk.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Info describes the first video stream of a file.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	Duration   float64 // seconds
	Codec      string
	Rotation   int // degrees, as reported by the container
}

// CheckAvailable reports whether ffprobe and ffmpeg are on PATH.
func CheckAvailable() error {
	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("%s not found in PATH: video analysis will be unavailable. Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", tool)
		}
		log.Debug().Str("path", path).Msgf("%s found", tool)
	}
	return nil
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// Probe runs ffprobe on path and returns the first video stream's info.
// Width and height are reported as displayed, after rotation.
func Probe(ctx context.Context, path string) (*Info, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var stream *probeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" || probe.Streams[i].CodecType == "" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return nil, fmt.Errorf("no video stream found")
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("video stream has no dimensions")
	}

	info := &Info{
		Width:    stream.Width,
		Height:   stream.Height,
		Codec:    stream.CodecName,
		Rotation: streamRotation(stream),
	}
	if info.Rotation%180 != 0 {
		info.Width, info.Height = info.Height, info.Width
	}

	info.FPS = parseFrameRate(stream.AvgFrameRate)
	if info.FPS <= 0 {
		info.FPS = parseFrameRate(stream.RFrameRate)
	}

	info.Duration = parseSeconds(stream.Duration)
	if info.Duration <= 0 {
		info.Duration = parseSeconds(probe.Format.Duration)
	}

	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.Duration > 0 && info.FPS > 0 {
		info.FrameCount = int(math.Round(info.Duration * info.FPS))
	}

	return info, nil
}

// streamRotation returns the display rotation normalized to [0, 360).
func streamRotation(s *probeStream) int {
	var deg float64
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			deg = sd.Rotation
			break
		}
	}
	if deg == 0 {
		if v, err := strconv.ParseFloat(s.Tags["rotate"], 64); err == nil {
			deg = v
		}
	}
	r := int(math.Round(deg)) % 360
	if r < 0 {
		r += 360
	}
	return r
}

// parseFrameRate parses ffprobe's "num/den" rate notation. A plain number is
// accepted. Unparseable values yield 0.
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
		return 0
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
