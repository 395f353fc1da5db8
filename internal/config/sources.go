package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read on top of the standard ROS ones.
const (
	EnvFile      = "SCREENPUB_ENV"
	EnvConfig    = "SCREENPUB_CONFIG"
	EnvNamespace = "SCREENPUB_NAMESPACE"
	EnvRate      = "SCREENPUB_RATE"
	EnvQuality   = "SCREENPUB_QUALITY"
	EnvSignaling = "SCREENPUB_SIGNALING"
)

// LoadDotenv loads a .env file into the process environment without
// overriding variables that are already set. It looks next to the executable
// first, then at the path in SCREENPUB_ENV. It returns the file used.
func LoadDotenv() string {
	path := resolveEnvPath()
	if path == "" {
		return ""
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("load %s: %v", path, err)
		return ""
	}
	return path
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}
	if alt := strings.TrimSpace(os.Getenv(EnvFile)); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// LoadFile applies a YAML config file on top of c. Keys absent from the file
// keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: config file: %v", ErrArgument, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: config file %s: %v", ErrArgument, path, err)
	}
	return nil
}

// applyEnv reads the ROS and SCREENPUB_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("ROS_MASTER_URI"); v != "" {
		c.MasterURI = v
	}
	// ROS_HOSTNAME takes precedence over ROS_IP, as in roscpp and rospy.
	if v := os.Getenv("ROS_IP"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("ROS_HOSTNAME"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("ROS_NAMESPACE"); v != "" {
		c.NodeNamespace = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv(EnvSignaling); v != "" {
		c.SignalingURL = v
	}
	for name, dst := range map[string]*int{EnvRate: &c.Rate, EnvQuality: &c.Quality} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrArgument, name, v, err)
		}
		*dst = n
	}
	return nil
}

// splitRemaps separates ROS remapping arguments (name:=value) from the rest,
// as rospy.myargv does.
func splitRemaps(args []string) (rest []string, remaps map[string]string) {
	remaps = map[string]string{}
	for _, a := range args {
		if k, v, ok := strings.Cut(a, ":="); ok && !strings.HasPrefix(a, "-") {
			remaps[k] = v
			continue
		}
		rest = append(rest, a)
	}
	return rest, remaps
}

// applyRemaps honours the special keys; topic remaps are reported and
// ignored.
func (c *Config) applyRemaps(remaps map[string]string) {
	special := []struct {
		key string
		dst *string
	}{
		{"__name", &c.NodeName},
		{"__ns", &c.NodeNamespace},
		{"__master", &c.MasterURI},
		{"__ip", &c.Host},
		{"__hostname", &c.Host},
	}
	for _, s := range special {
		if v, ok := remaps[s.key]; ok {
			*s.dst = v
			delete(remaps, s.key)
		}
	}
	for k, v := range remaps {
		log.Printf("ignoring unsupported remapping %s:=%s", k, v)
	}
}
