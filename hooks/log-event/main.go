// Package main is a sightline hook that appends tracking events to a
// JSON-lines file.
//
// Build it next to its manifest:
//
//	go build -o hooks/log-event/log-event ./hooks/log-event
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Request mirrors the payload the hook runner writes to stdin.
type Request struct {
	Event      string          `json:"event"`
	Center     *Point          `json:"center,omitempty"`
	Confidence float64         `json:"confidence"`
	Time       time.Time       `json:"time"`
	Config     json.RawMessage `json:"config"`
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Config is read from the manifest.
type Config struct {
	File string `json:"file"`
}

// entry is one line of the output file.
type entry struct {
	Event      string    `json:"event"`
	X          *int      `json:"x,omitempty"`
	Y          *int      `json:"y,omitempty"`
	Confidence float64   `json:"confidence"`
	Time       time.Time `json:"time"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("decode request: %w", err))
		return
	}

	cfg := Config{File: "events.jsonl"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(fmt.Errorf("parse config: %w", err))
			return
		}
	}

	writeResponse(appendEvent(cfg.File, req))
}

func appendEvent(path string, req Request) error {
	e := entry{Event: req.Event, Confidence: req.Confidence, Time: req.Time}
	if req.Center != nil {
		e.X, e.Y = &req.Center.X, &req.Center.Y
	}

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
