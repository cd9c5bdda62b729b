package service

import (
	"context"
	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"
	"time"
)

// GetSystemOverview collects a set of aggregate metrics about the current state of the system.
func (service *adminService) GetSystemOverview(ctx context.Context) (ports.SystemOverviewResult, error) {
	var res ports.SystemOverviewResult
	now := time.Now().UTC()
	res.Timestamp = now

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// ----- Ride metrics -----

		nActive, err := service.rideRepo.CountActive(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.ActiveRides = nActive

		totalToday, err := service.rideRepo.CountCreatedBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.TotalRidesToday = totalToday

		revenueToday, err := service.rideRepo.SumFareCompletedBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.TotalRevenueToday = revenueToday

		avgWait, err := service.rideRepo.AvgWaitMinutesBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.AverageWaitTimeMinutes = avgWait

		avgRideDur, err := service.rideRepo.AvgRideDurationMinutesBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.AverageRideDurationMinutes = avgRideDur

		cancelRate, err := service.rideRepo.CancellationRateBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.CancellationRate = cancelRate

		// ----- Driver metrics -----

		nLive, err := service.driverRepo.CountByStatus(txCtx, driver.StatusLive)
		if err != nil {
			return err
		}
		res.Metrics.LiveDrivers = nLive

		nOnRide, err := service.driverRepo.CountByStatus(txCtx, driver.StatusOnRide)
		if err != nil {
			return err
		}
		res.Metrics.OnRideDrivers = nOnRide

		bikeCnt, err := service.driverRepo.CountByVehicleType(txCtx, ride.VehicleBike)
		if err != nil {
			return err
		}
		res.DriverDistribution.Bike = bikeCnt

		taxiCnt, err := service.driverRepo.CountByVehicleType(txCtx, ride.VehicleTaxi)
		if err != nil {
			return err
		}
		res.DriverDistribution.Taxi = taxiCnt

		portCnt, err := service.driverRepo.CountByVehicleType(txCtx, ride.VehiclePort)
		if err != nil {
			return err
		}
		res.DriverDistribution.Port = portCnt

		// ----- Hotspots -----

		hs, err := service.driverRepo.Hotspots(txCtx, 10)
		if err != nil {
			return err
		}

		res.Hotspots = res.Hotspots[:0]
		for _, h := range hs {
			res.Hotspots = append(res.Hotspots, ports.Hotspot{
				Location:       h.Location,
				ActiveRides:    h.ActiveRides,
				WaitingDrivers: h.WaitingDrivers,
			})
		}

		return nil
	})
	if err != nil {
		return ports.SystemOverviewResult{}, err
	}

	return res, nil
}
