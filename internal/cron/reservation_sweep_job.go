package cron

import (
	"context"
	"fmt"

	"github.com/panierlocal/amap-backend/pkg/logger"
)

type reservationSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// NewReservationSweepJob builds the job that removes expired advisory holds
// so the quantity they shadowed becomes reservable again.
func NewReservationSweepJob(logg *logger.Logger, sweeper reservationSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	return &reservationSweepJob{logg: logg, sweeper: sweeper}, nil
}

type reservationSweepJob struct {
	logg    *logger.Logger
	sweeper reservationSweeper
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	removed, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired reservations: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "removed", removed), "reservation sweep complete")
	return nil
}
