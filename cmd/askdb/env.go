package main

import "os"

// lookupEnv returns the first non-empty variable among keys.
func lookupEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
