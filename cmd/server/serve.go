package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/tariel-x/gopresence/internal/config"
)

// serve blocks serving the API in the mode the configuration selects: plain
// HTTP, HTTPS with a generated certificate, or HTTPS through Let's Encrypt.
func serve(handler http.Handler, cfg *config.Config, selfSigned bool, logger *slog.Logger) error {
	if cfg.HTTPOnly {
		logger.Info("serving http", "port", cfg.HTTPPort, "frontend_uri", cfg.FrontendURI)
		return listen(newServer(cfg.HTTPPort, handler, logger).ListenAndServe())
	}

	var (
		tlsConfig *tls.Config
		redirect  http.Handler = httpsRedirect(cfg.HTTPSPort)
	)
	if selfSigned {
		var err error
		if tlsConfig, err = selfSignedTLS(cfg.Domain); err != nil {
			return err
		}
		logger.Info("serving https with a self-signed certificate", "port", cfg.HTTPSPort, "domain", cfg.Domain)
	} else {
		if err := os.MkdirAll(cfg.CertsDir, 0o700); err != nil {
			return fmt.Errorf("create certs directory: %w", err)
		}
		m := autocertManager(cfg)
		tlsConfig = m.TLSConfig()
		redirect = m.HTTPHandler(redirect)
		logger.Info("serving https with let's encrypt", "port", cfg.HTTPSPort,
			"domain", normalizeDomain(cfg.Domain), "certs_dir", cfg.CertsDir)
	}

	go func() {
		if err := listen(newServer(cfg.HTTPPort, redirect, logger).ListenAndServe()); err != nil {
			logger.Error("redirect server stopped", "port", cfg.HTTPPort, "error", err)
		}
	}()

	srv := newServer(cfg.HTTPSPort, handler, logger)
	srv.TLSConfig = tlsConfig
	return listen(srv.ListenAndServeTLS("", ""))
}

func newServer(port string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     log.New(serverErrorLog(logger), "", 0),
	}
}

func listen(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// autocertManager accepts only the configured domain. Renewal is handled by
// the manager itself when certificates near expiry.
func autocertManager(cfg *config.Config) *autocert.Manager {
	domain := normalizeDomain(cfg.Domain)
	return &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(cfg.CertsDir),
		HostPolicy: func(_ context.Context, host string) error {
			if normalizeDomain(host) != domain {
				return fmt.Errorf("host %q not configured", host)
			}
			return nil
		},
	}
}

func httpsRedirect(httpsPort string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if httpsPort != "443" {
			host = net.JoinHostPort(host, httpsPort)
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// normalizeDomain lowercases and drops a leading "www.".
func normalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}

// selfSignedTLS builds a TLS config around a fresh one-year certificate for
// host, which may be a DNS name or an IP address.
func selfSignedTLS(host string) (*tls.Config, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "localhost"
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"gopresence"}, CommonName: host},
		NotBefore:             now,
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if ip := net.ParseIP(host); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	} else {
		tmpl.DNSNames = []string{host}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
