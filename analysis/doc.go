// Package analysis runs the request pipeline behind POST /analyze:
// validate the URL, download into a scratch file, decode, check the
// duration floor, run the diarization model and round the segments.
//
// Every stage opens a span, records its duration and logs with the request
// id carried in the context. The scratch file is released on every path.
package analysis
