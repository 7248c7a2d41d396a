package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/baldhumanity/aiai-go/device"
	"github.com/baldhumanity/aiai-go/episode"
	"github.com/baldhumanity/aiai-go/neat"
)

// session owns the devices of one command invocation.
type session struct {
	rc      *episode.RunContext
	runner  *episode.Runner
	closers []io.Closer
}

func openSession(cfg *episode.Config, neatCfg *neat.Config, logger *log.Logger) (*session, error) {
	sensor := episode.NewSensor(cfg.Capture.Width, cfg.Capture.Height, cfg.Capture.Scale)
	if n := neatCfg.Genome.NumInputs; n != sensor.Len() {
		return nil, fmt.Errorf("num_inputs is %d but the sensor produces %d values", n, sensor.Len())
	}
	if neatCfg.Genome.NumOutputs != 2 {
		return nil, fmt.Errorf("num_outputs is %d, the controller needs 2", neatCfg.Genome.NumOutputs)
	}

	templates, err := episode.LoadTemplates(cfg.Run.Templates, cfg)
	if err != nil {
		return nil, err
	}

	s := &session{}
	var frames episode.FrameSource
	if cfg.Capture.FramesDir != "" {
		frames, err = device.NewDirSource(cfg.Capture.FramesDir, cfg.Capture.Region())
		logger.Info("replaying recorded frames", "dir", cfg.Capture.FramesDir)
	} else {
		frames, err = device.NewCommandSource(cfg.Capture.Command, cfg.Capture.Region())
	}
	if err != nil {
		return nil, err
	}

	var actuator episode.Actuator = device.LogActuator{Logger: logger}
	if cfg.Actuator.Pipe != "" {
		pipe, err := device.OpenPipeActuator(cfg.Actuator.Pipe, cfg.Actuator.ResetButton)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pipe)
		actuator = pipe
	} else {
		logger.Warn("no controller pipe configured, commands are only logged")
	}

	s.rc = &episode.RunContext{
		Config: cfg,
		Resources: &episode.Resources{
			Templates: templates,
			Detector:  device.NewHTTPDetector(cfg.Detector.URL, cfg.Detector.Timeout),
		},
		Frames:   frames,
		Actuator: actuator,
		Logger:   logger,
	}
	s.runner, err = episode.NewRunner(s.rc)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
