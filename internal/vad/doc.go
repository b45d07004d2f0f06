// Package vad decides when a human is speaking into the microphone.
//
// A [Calibrator] listens to the room once at startup and derives a noise
// threshold from the loudest ambient frame. A [Segmenter] then classifies each
// frame against that threshold and groups speech into utterances, using
// hysteresis so a single quiet frame inside a sentence does not split it.
//
// Both types are driven from the single consumer loop and are not safe for
// concurrent use.
package vad
