package config

import (
	"crypto/tls"
	"fmt"
)

type HTTPOptions struct {
	MinTLSVersion string `yaml:"minTLSVersion"`
}

var tlsVersions = []uint16{
	tls.VersionTLS10,
	tls.VersionTLS11,
	tls.VersionTLS12,
	tls.VersionTLS13,
}

// TLSVersion maps a name such as "TLS 1.2" to its crypto/tls constant.
func TLSVersion(name string) (uint16, error) {
	if name == "" {
		return tls.VersionTLS12, nil
	}
	for _, v := range tlsVersions {
		if tls.VersionName(v) == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("config.TLSVersion: unsupported TLS version %q", name)
}

// MinTLSVersion is the validated http.minTLSVersion setting.
func (r *Runtime) MinTLSVersion() uint16 {
	if r.Config.HTTPOptions == nil {
		return tls.VersionTLS12
	}
	v, err := TLSVersion(r.Config.HTTPOptions.MinTLSVersion)
	if err != nil {
		return tls.VersionTLS12
	}
	return v
}
