package logger

import "os"

// stdout resolves os.Stdout at write time so tests that swap it still see output.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}
