// Package gologger resolves launcher loggers by component and bridges them to
// the go-job logger contract used by the refresh worker.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	RootLoggerName         = "launcher"
	ComponentRefreshWorker = "refresh_worker"
	ComponentRefreshQueue  = "refresh_queue"
)

// LoggerName returns the dotted logger name for a launcher component.
func LoggerName(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" || component == RootLoggerName {
		return RootLoggerName
	}
	if strings.HasPrefix(component, RootLoggerName+".") {
		return component
	}
	return RootLoggerName + "." + component
}

// Resolve uses deterministic precedence provider > logger > nop and names the
// logger after the component.
func Resolve(component string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	resolvedProvider, resolvedLogger := glog.Resolve(LoggerName(component), provider, logger)
	return resolvedProvider, glog.Ensure(resolvedLogger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the component logger and returns it along with the
// equivalent go-job adapters.
func ResolveForJob(
	component string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(component, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
