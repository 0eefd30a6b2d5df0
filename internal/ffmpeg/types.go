package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath        string
	Duration        time.Duration
	StartTime       float64
	FrameCount      int
	Width           int
	Height          int
	FPS             float64
	Bitrate         int64
	VideoCodec      string
	HasAudio        bool
	AudioCodec      string
	AudioSampleRate int
}

// DurationSeconds returns the duration as fractional seconds
func (v *VideoInfo) DurationSeconds() float64 {
	return v.Duration.Seconds()
}

// SecondsPerFrame derives the frame interval from the frame count, falling
// back to the frame rate
func (v *VideoInfo) SecondsPerFrame() float64 {
	if v.FrameCount > 0 && v.Duration > 0 {
		return v.DurationSeconds() / float64(v.FrameCount)
	}
	if v.FPS > 0 {
		return 1 / v.FPS
	}
	return 0
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame int
	Time  string
	Speed string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// ProgressFunc receives one parsed -progress block at a time
type ProgressFunc func(*Progress)
