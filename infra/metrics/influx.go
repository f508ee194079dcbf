package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/floc/core/logger"
	coremetrics "github.com/kilianp07/floc/core/metrics"
	infralogger "github.com/kilianp07/floc/infra/logger"
)

// InfluxSink writes loop progress to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordIteration writes one iteration snapshot as a line-protocol point.
func (s *InfluxSink) RecordIteration(it coremetrics.IterationStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("benders_iteration").
		AddTag("iteration", strconv.Itoa(it.Iteration)).
		AddField("lower_bound", finite(it.LowerBound)).
		AddField("upper_bound", finite(it.UpperBound)).
		AddField("gap", finite(it.Gap)).
		AddField("optimality_cuts", it.OptimalityCuts).
		AddField("feasibility_cuts", it.FeasibilityCuts).
		AddField("master_seconds", it.MasterTime.Seconds()).
		AddField("scenario_seconds", it.ScenarioTime.Seconds()).
		SetTime(time.Now())
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write error: %v", err)
		return err
	}
	return nil
}

// RecordRun writes the run summary.
func (s *InfluxSink) RecordRun(run coremetrics.RunStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("benders_run").
		AddTag("state", run.State).
		AddField("iterations", run.Iterations).
		AddField("objective", finite(run.Objective)).
		AddField("gap", finite(run.Gap)).
		AddField("duration_seconds", run.Duration.Seconds()).
		SetTime(time.Now())
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write error: %v", err)
		return err
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// finite maps infinities to zero; line protocol rejects them.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
