// Package audio plays a sound cue when a toast is shown.
// It uses the beep library to play WAV, OGG and MP3 files with volume
// control and one configurable sound per toast variant.
package audio
