// Package testutil provides an httptest-backed server component that runs
// the production middleware stack.
//
//	srv := testutil.NewComponent()
//	srv.GinEngine().POST("/analyze", handler.Analyze)
//	coretest.T(t).Setup(srv)
//	resp, _ := http.Post(srv.BaseURL()+"/analyze", "application/json", body)
package testutil
