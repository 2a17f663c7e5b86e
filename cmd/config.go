package main

import (
	"github.com/amase-cc/apremind/types"
)

type Config struct {
	ApConfig types.ApConfig `yaml:"apConfig"`
	Server   Server         `yaml:"server"`
	NodeInfo types.NodeInfo `yaml:"nodeInfo"`
}

type Server struct {
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`

	// DisableSignatureCheck skips inbound HTTP signature verification.
	// Only useful for local poking with curl.
	DisableSignatureCheck bool `yaml:"disableSignatureCheck"`
}
