package media

import (
	"io"
	"time"
)

// VideoInfo contains metadata about a staged input
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	VideoCodec string
	HasAudio   bool
}

// Progress is one ffmpeg -progress block
type Progress struct {
	Frame   int
	FPS     float64
	OutTime time.Duration
	Speed   string
	Done    bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Input is a source video handed to the engine. Name only contributes its
// extension to the staged file name.
type Input struct {
	Name   string
	Reader io.Reader
}

// ProgressFunc receives sampling progress as a fraction in [0,1].
type ProgressFunc func(fraction float64)
