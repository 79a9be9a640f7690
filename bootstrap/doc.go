// Package bootstrap orchestrates the service lifecycle.
//
// It validates typed configuration, initializes logging, starts registered
// components in order, runs startup hooks, prints a startup summary, waits
// for SIGINT/SIGTERM and stops everything in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(model)
//	app.OnConfigure(wireHTTP)
//	return app.Run(ctx)
package bootstrap
