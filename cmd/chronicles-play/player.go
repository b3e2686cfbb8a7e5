package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var errNoPlayer = errors.New("audio player command is empty")

// player is an external process fed raw PCM on stdin.
type player struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func startPlayer(command string) (*player, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errNoPlayer
	}
	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("audio player: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio player: start %s: %w", args[0], err)
	}
	return &player{cmd: cmd, stdin: stdin}, nil
}

func (p *player) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close ends the input and waits for the player to drain it.
func (p *player) Close() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}
