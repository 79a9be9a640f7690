// Package api exposes the analysis pipeline over HTTP as POST /analyze.
package api
