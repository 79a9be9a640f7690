// Package download fetches remote audio into a local writer with bounded
// waits.
//
// Config.Timeout bounds connecting, waiting for response headers and every
// stall between body reads, so a slow but steady transfer is not cut off
// while a silent server is. Config.MaxDuration optionally caps the whole
// transfer. Failures are returned as *errors.AppError: DOWNLOAD_TIMEOUT for
// any of the timeouts and DOWNLOAD_FAILED for everything else.
package download
