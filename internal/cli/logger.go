package cli

import "go.uber.org/zap"

// agentLogger wraps zap for verbose debug with node context.
type agentLogger struct {
	sugared *zap.SugaredLogger
	globals *Globals
}

func newAgentLogger(globals *Globals) *agentLogger {
	if globals == nil || !globals.Verbose {
		return &agentLogger{}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	logger, _ := cfg.Build()
	return &agentLogger{
		sugared: logger.Sugar(),
		globals: globals,
	}
}

func (l *agentLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	node := ""
	if l.globals != nil && l.globals.Config != nil {
		node = l.globals.Config.Node.Name
	}
	l.sugared.With("node", node).Debugf(format, args...)
}

// newSupervisorLogger builds the audit logger for the run command. Every
// decision and failure lands here; there is no other alerting channel.
func newSupervisorLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.Encoding = "json"
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
