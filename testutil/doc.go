// Package testutil provides test helpers shared across the diarizer
// packages: component lifecycle setup with automatic cleanup and an
// httptest upstream that hosts audio fixtures.
//
//	func TestPipeline(t *testing.T) {
//	    testutil.T(t).Setup(store)
//	    up := testutil.NewUpstream(t)
//	    up.Serve("/a.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(2*time.Second, 16000, 1, 440)))
//	    ...
//	}
//
// Audio waveform builders live in testutil/fixtures.
package testutil
