// Package config provides configuration structures and utilities for spider.
// It defines the crawl options, the .spider configuration file with its
// per-site overrides, and report output preferences.
package config
