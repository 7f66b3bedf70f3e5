package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/acme/autocert"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

// Manager handles TLS certificates, either via Let's Encrypt or from
// certificate files on disk.
type Manager struct {
	config      *Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
	initialized bool
}

// Config holds the TLS options loaded from the [TLS] section.
type Config struct {
	EnableTLS          bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPSPort          string
}

// NewManager creates a TLS manager from the configuration.
func NewManager() (*Manager, error) {
	config := &Config{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "3443"),
	}

	manager := &Manager{config: config}

	if err := manager.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %v", err)
	}

	if config.EnableTLS {
		if err := manager.initializeTLS(); err != nil {
			return nil, fmt.Errorf("TLS initialization failed: %v", err)
		}
	}

	return manager, nil
}

// validateConfig checks the TLS options for completeness.
func (m *Manager) validateConfig() error {
	if !m.config.EnableTLS {
		return nil
	}
	if m.config.EnableLetsEncrypt {
		if strings.TrimSpace(m.config.Domain) == "" {
			return fmt.Errorf("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(m.config.LetsEncryptEmail) == "" {
			return fmt.Errorf("letsencrypt_email is required when Let's Encrypt is enabled")
		}
	} else {
		if _, err := os.Stat(m.config.CertFile); os.IsNotExist(err) {
			logger.GatewayWarn("TLS certificate file not found: %s", m.config.CertFile)
		}
		if _, err := os.Stat(m.config.KeyFile); os.IsNotExist(err) {
			logger.GatewayWarn("TLS key file not found: %s", m.config.KeyFile)
		}
	}
	return nil
}

func (m *Manager) initializeTLS() error {
	if m.config.EnableLetsEncrypt {
		return m.initializeLetsEncrypt()
	}
	return m.initializeManualTLS()
}

// initializeLetsEncrypt sets up automatic certificate management.
func (m *Manager) initializeLetsEncrypt() error {
	logger.GatewayInfo("initializing Let's Encrypt for domain %s", m.config.Domain)

	if err := os.MkdirAll(m.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %v", err)
	}

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(m.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      m.config.LetsEncryptEmail,
		HostPolicy: autocert.HostWhitelist(m.config.Domain, "www."+m.config.Domain),
	}

	m.tlsConfig = &tls.Config{
		GetCertificate: func(clientHello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			serverName := clientHello.ServerName
			if serverName == "" {
				serverName = m.config.Domain
			}
			if serverName != m.config.Domain && serverName != "www."+m.config.Domain {
				logger.GatewayWarn("TLS request for unauthorized domain %s", serverName)
				return nil, fmt.Errorf("unauthorized domain: %s", serverName)
			}
			return m.autocertMgr.GetCertificate(clientHello)
		},
		NextProtos: []string{"h2", "http/1.1"},
		MinVersion: tls.VersionTLS12,
	}

	m.initialized = true
	return nil
}

// initializeManualTLS checks that the configured certificate files exist.
func (m *Manager) initializeManualTLS() error {
	if _, err := os.Stat(m.config.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("certificate file not found: %s", m.config.CertFile)
	}
	if _, err := os.Stat(m.config.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("key file not found: %s", m.config.KeyFile)
	}
	m.initialized = true
	return nil
}

// GetTLSConfig returns the tls.Config for the HTTPS server, or nil when
// TLS is disabled.
func (m *Manager) GetTLSConfig() *tls.Config {
	if !m.initialized || !m.config.EnableTLS {
		return nil
	}
	return m.tlsConfig
}

// GetHTTPHandler wraps a handler with the Let's Encrypt challenge handler.
func (m *Manager) GetHTTPHandler(fallback http.Handler) http.Handler {
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(fallback)
	}
	return fallback
}

// GetHTTPSRedirectHandler returns a handler redirecting HTTP to HTTPS, or
// nil when redirection is disabled.
func (m *Manager) GetHTTPSRedirectHandler() http.Handler {
	if !m.config.ForceHTTPSRedirect {
		return nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if strings.Contains(host, ":") {
			host = strings.Split(host, ":")[0]
		}

		httpsURL := fmt.Sprintf("https://%s", host)
		if m.config.HTTPSPort != "443" {
			httpsURL = fmt.Sprintf("https://%s:%s", host, m.config.HTTPSPort)
		}
		httpsURL += r.RequestURI

		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})
}

// IsEnabled reports whether TLS is enabled.
func (m *Manager) IsEnabled() bool {
	return m.config.EnableTLS
}

// UsesLetsEncrypt reports whether certificates come from Let's Encrypt.
func (m *Manager) UsesLetsEncrypt() bool {
	return m.config.EnableLetsEncrypt
}

// GetHTTPSPort returns the HTTPS listen port.
func (m *Manager) GetHTTPSPort() string {
	return m.config.HTTPSPort
}

// GetCertFiles returns the certificate and key file paths for manual TLS.
func (m *Manager) GetCertFiles() (string, string) {
	return m.config.CertFile, m.config.KeyFile
}
