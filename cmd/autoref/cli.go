package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/robocup-autoref/autoref/internal/database"
	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/internal/model/convert"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// readConsole dispatches operator commands typed on in, one per line, and
// writes each result to out as JSON.
func readConsole(ctx context.Context, in io.Reader, out io.Writer, d *dispatcher.Dispatcher) {
	scanner := bufio.NewScanner(in)
	enc := json.NewEncoder(out)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		e, ok := dispatcher.ParseLine(scanner.Text(), time.Now())
		if !ok {
			continue
		}
		result, err := d.Dispatch(e)
		if err != nil {
			enc.Encode(map[string]string{"command": e.Command, "error": err.Error()})
			continue
		}
		enc.Encode(map[string]any{"command": e.Command, "result": result})
	}
}

// printJournal writes the sessions of a journal database, or the decisions
// of one session, as JSON.
//
//	autoref journal <file.db> [sessionID]
func printJournal(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoref journal <file.db> [sessionID]")
	}
	db, err := database.GetSqliteDB(args[0])
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if len(args) < 2 {
		var sessions []model.Session
		if err := db.Order("id").Find(&sessions).Error; err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		return enc.Encode(sessions)
	}

	sessionID, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[1], err)
	}
	var rows []model.Decision
	if err := db.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to read decisions: %w", err)
	}
	entries := make([]core.DecisionEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, convert.DecisionToCore(row))
	}
	return enc.Encode(entries)
}
