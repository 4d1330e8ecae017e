package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/logging"
)

// NewTLSConfig loads a certificate/key pair and returns a TLS
// configuration suitable for the event server.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
