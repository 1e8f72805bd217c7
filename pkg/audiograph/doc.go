// Package audiograph is the audio-rate side of the monitor: it decodes
// PCM chunks, taps the energy of the raw signal, runs the high-pass and
// low-pass stages and applies the gate and volume gains.
//
// The control-rate side (see packages noisegate and filterchain) talks to
// it only through parameters: cutoff frequencies and gains are published
// atomically and picked up at the start of the next processed block.
package audiograph
