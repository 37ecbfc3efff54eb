/*
 * This file is part of ldm, an LDM database reader/patcher.
 * Copyright (C) 2025 The ldm authors.
 *
 * ldm is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * ldm is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with ldm.  If not, see <https://www.gnu.org/licenses/>.
 */

// Command ldmutil reads, dumps, copies and patches the LDM database found
// on Windows dynamic disks.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flatcap/ldm/internal/copier"
	"github.com/flatcap/ldm/internal/device"
	"github.com/flatcap/ldm/internal/errs"
	"github.com/flatcap/ldm/internal/ldm"
)

const version = "v0.1"

var flagLogLevel = newLogLevelFlag(zerolog.InfoLevel, "log-level", "Log level (trace, debug, info, warn, error, fatal, panic)")

func newLogLevelFlag(value zerolog.Level, name string, usage string) *logLevelFlag {
	p := &logLevelFlag{level: value}
	flag.Var(p, name, usage)
	return p
}

// logLevelFlag implements flag.Value for zerolog.Level.
type logLevelFlag struct {
	level zerolog.Level
}

func (f *logLevelFlag) String() string {
	return f.level.String()
}

func (f *logLevelFlag) Set(value string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(value))
	if err != nil {
		return err
	}
	f.level = level
	return nil
}

func (f *logLevelFlag) Get() zerolog.Level {
	return f.level
}

func usage() {
	fmt.Fprintf(os.Stderr, "ldmutil %s\n\n", version)
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "   %s [flags] DEVICE l            -- list partitions to stdout\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "   %s [flags] DEVICE c DEVICE2    -- copy raw ldm database from DEVICE to DEVICE2\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "   %s [flags] DEVICE t VOLID TYPE -- set partition type for VOLID to TYPE\n", os.Args[0])
}

func initLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.
		New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    false,
		}).
		With().Timestamp().Logger()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	initLogging(flagLogLevel.Get())

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	if err := run(args[0], args[1], args[2:]); err != nil {
		usage()
		var e *errs.Error
		if errors.As(err, &e) {
			log.Error().Str("kind", e.Kind.String()).Msg(e.Msg)
		} else {
			log.Error().Err(err).Msg("unknown error")
		}
		fmt.Fprintf(os.Stderr, "Task failed!\n")
		os.Exit(1)
	}
}

func run(devicePath, cmd string, rest []string) error {
	switch cmd {
	case "l":
		return taskList(devicePath)
	case "c":
		return taskCopy(devicePath, rest)
	case "t":
		return taskChange(devicePath, rest)
	default:
		return errs.New(errs.ArgError, fmt.Sprintf("unknown command %q", cmd))
	}
}

func taskList(devicePath string) error {
	dev, err := device.Open(devicePath, true)
	if err != nil {
		return err
	}
	defer dev.Close()

	var ldb ldm.LdmDatabase
	if err := ldb.Read(dev); err != nil {
		return err
	}
	return ldb.Dump(os.Stdout)
}

func taskCopy(devicePath string, rest []string) error {
	if len(rest) != 1 {
		return errs.New(errs.ArgError, "Bad argument count.")
	}

	src, err := device.Open(devicePath, true)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := copier.OpenDestination(rest[0])
	if err != nil {
		return err
	}
	defer dst.Close()

	return copier.Copy(src, dst)
}

func taskChange(devicePath string, rest []string) error {
	if len(rest) != 2 {
		return errs.New(errs.ArgError, "Invalid parameters.")
	}

	id, err := strconv.ParseUint(rest[0], 10, 64)
	if err != nil {
		return errs.Wrap(errs.ArgError, "Invalid parameters.", err)
	}
	typ, err := strconv.ParseUint(rest[1], 16, 8)
	if err != nil {
		return errs.Wrap(errs.ArgError, "Invalid parameters.", err)
	}

	dev, err := device.Open(devicePath, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	var ldb ldm.LdmDatabase
	if err := ldb.Read(dev); err != nil {
		return err
	}
	return ldb.ChangeVolumeType(dev, ldm.VolumeID(id), byte(typ))
}
