// Package simulation drives federated rounds over in-process virtual
// clients. It is deliberately small: select clients, fan out Fit, average
// the returned weights by example count, fan out Evaluate, record history.
// There is no transport and no strategy plumbing here.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/AlexVialaBellander/flower/internal/client"
	"github.com/AlexVialaBellander/flower/internal/telemetry"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

// ClientFn builds the virtual client with the given client ID.
type ClientFn func(cid string) (client.Client, error)

// Config controls a simulation run.
type Config struct {
	NumClients  int
	NumRounds   int
	FractionFit float64 // fraction of clients trained per round; 0 means all
	LocalEpochs int     // local epochs sent in the fit config; 0 keeps client defaults
	Seed        int64   // client selection seed
	ClientFn    ClientFn

	// InitialParameters seeds the global weights. When nil, client "0" is
	// asked for its weights instead.
	InitialParameters *client.Parameters
}

// RoundMetric is one per-round value in a History.
type RoundMetric struct {
	Round int
	Value float64
}

// History collects the distributed (client-side) metrics of a run.
type History struct {
	RunID      uuid.UUID
	Losses     []RoundMetric
	Accuracies []RoundMetric
}

type fitOut struct {
	cid string
	res client.FitRes
}

type evaluateOut struct {
	cid string
	res client.EvaluateRes
}

// Start runs the federated simulation and returns the per-round history.
// Initial global weights come from client "0".
func Start(ctx context.Context, cfg Config) (*History, error) {
	if cfg.ClientFn == nil {
		return nil, fmt.Errorf("client function is required")
	}
	if cfg.NumClients < 1 {
		return nil, fmt.Errorf("number of clients must be positive, got %d", cfg.NumClients)
	}
	if cfg.NumRounds < 1 {
		return nil, fmt.Errorf("number of rounds must be positive, got %d", cfg.NumRounds)
	}

	history := &History{RunID: uuid.New()}
	log := logger.Get().With().
		Str("component", "simulation").
		Str("run_id", history.RunID.String()).
		Logger()

	clients := make([]client.Client, cfg.NumClients)
	for i := range clients {
		c, err := cfg.ClientFn(strconv.Itoa(i))
		if err != nil {
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}
		clients[i] = c
	}

	var globalParams client.Parameters
	if cfg.InitialParameters != nil {
		globalParams = *cfg.InitialParameters
	} else {
		var err error
		globalParams, err = initialParameters(ctx, clients[0])
		if err != nil {
			return nil, err
		}
	}
	log.Info().
		Int("num_clients", cfg.NumClients).
		Int("num_rounds", cfg.NumRounds).
		Msg("Starting simulation")

	rng := rand.New(rand.NewSource(cfg.Seed))
	for round := 1; round <= cfg.NumRounds; round++ {
		roundStart := time.Now()

		selected := selectClients(rng, cfg.NumClients, cfg.FractionFit)
		fitConfig := client.Config{"server_round": round}
		if cfg.LocalEpochs > 0 {
			fitConfig["local_epochs"] = cfg.LocalEpochs
		}

		fitResults, err := fitRound(ctx, clients, selected, globalParams, fitConfig)
		if err != nil {
			telemetry.RecordRound("error", time.Since(roundStart))
			return nil, fmt.Errorf("round %d fit failed: %w", round, err)
		}

		aggregated, err := aggregate(fitResults)
		if err != nil {
			telemetry.RecordRound("error", time.Since(roundStart))
			return nil, fmt.Errorf("round %d aggregation failed: %w", round, err)
		}
		globalParams = client.WeightsToParameters(aggregated)

		loss, accuracy, err := evaluateRound(ctx, clients, globalParams, client.Config{"server_round": round})
		if err != nil {
			telemetry.RecordRound("error", time.Since(roundStart))
			return nil, fmt.Errorf("round %d evaluation failed: %w", round, err)
		}

		history.Losses = append(history.Losses, RoundMetric{Round: round, Value: loss})
		history.Accuracies = append(history.Accuracies, RoundMetric{Round: round, Value: accuracy})

		telemetry.RecordRound("success", time.Since(roundStart))
		telemetry.RecordDistributedMetrics(loss, accuracy)
		log.Info().
			Int("round", round).
			Int("fit_clients", len(selected)).
			Float64("loss", loss).
			Float64("accuracy", accuracy).
			Dur("duration", time.Since(roundStart)).
			Msg("Round complete")
	}

	return history, nil
}

func initialParameters(ctx context.Context, c client.Client) (client.Parameters, error) {
	res, err := c.GetParameters(ctx, client.GetParametersIns{})
	if err != nil {
		return client.Parameters{}, fmt.Errorf("failed to get initial parameters: %w", err)
	}
	if res.Status.Code != client.OK {
		return client.Parameters{}, fmt.Errorf("initial parameters request rejected: %s", res.Status.Message)
	}
	return res.Parameters, nil
}

// selectClients picks the round's training participants: all clients when
// fraction <= 0 or >= 1, otherwise a random subset of at least one.
func selectClients(rng *rand.Rand, numClients int, fraction float64) []int {
	if fraction <= 0 || fraction >= 1 {
		all := make([]int, numClients)
		for i := range all {
			all[i] = i
		}
		return all
	}

	m := int(fraction * float64(numClients))
	if m < 1 {
		m = 1
	}
	return rng.Perm(numClients)[:m]
}

func fitRound(ctx context.Context, clients []client.Client, selected []int, params client.Parameters, config client.Config) ([]fitOut, error) {
	p := pool.NewWithResults[fitOut]().WithContext(ctx)
	for _, idx := range selected {
		idx := idx
		p.Go(func(ctx context.Context) (fitOut, error) {
			start := time.Now()
			res, err := clients[idx].Fit(ctx, client.FitIns{Parameters: params, Config: config})
			if err != nil {
				telemetry.RecordClientFit("error", time.Since(start))
				return fitOut{}, fmt.Errorf("client %d: %w", idx, err)
			}
			if res.Status.Code != client.OK {
				telemetry.RecordClientFit("rejected", time.Since(start))
				return fitOut{}, fmt.Errorf("client %d rejected fit: %s", idx, res.Status.Message)
			}
			telemetry.RecordClientFit("success", time.Since(start))
			return fitOut{cid: strconv.Itoa(idx), res: res}, nil
		})
	}
	return p.Wait()
}

func evaluateRound(ctx context.Context, clients []client.Client, params client.Parameters, config client.Config) (float64, float64, error) {
	p := pool.NewWithResults[evaluateOut]().WithContext(ctx)
	for idx := range clients {
		idx := idx
		p.Go(func(ctx context.Context) (evaluateOut, error) {
			res, err := clients[idx].Evaluate(ctx, client.EvaluateIns{Parameters: params, Config: config})
			if err != nil {
				return evaluateOut{}, fmt.Errorf("client %d: %w", idx, err)
			}
			if res.Status.Code != client.OK {
				return evaluateOut{}, fmt.Errorf("client %d rejected evaluate: %s", idx, res.Status.Message)
			}
			return evaluateOut{cid: strconv.Itoa(idx), res: res}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return 0, 0, err
	}

	totalExamples := 0
	weightedLoss := 0.0
	weightedAccuracy := 0.0
	haveAccuracy := false
	for _, out := range results {
		n := out.res.NumExamples
		totalExamples += n
		weightedLoss += out.res.Loss * float64(n)
		if acc, ok := out.res.Metrics["accuracy"].(float64); ok {
			weightedAccuracy += acc * float64(n)
			haveAccuracy = true
		}
	}
	if totalExamples == 0 {
		return 0, 0, fmt.Errorf("evaluation covered no examples")
	}

	loss := weightedLoss / float64(totalExamples)
	accuracy := 0.0
	if haveAccuracy {
		accuracy = weightedAccuracy / float64(totalExamples)
	}
	return loss, accuracy, nil
}

// aggregate computes the example-count weighted average of the returned
// weight tensors.
func aggregate(results []fitOut) ([][]float32, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no fit results to aggregate")
	}

	totalExamples := 0
	for _, out := range results {
		if out.res.NumExamples <= 0 {
			return nil, fmt.Errorf("client %s reported %d examples", out.cid, out.res.NumExamples)
		}
		totalExamples += out.res.NumExamples
	}

	var sum [][]float32
	for _, out := range results {
		weights, err := client.ParametersToWeights(out.res.Parameters)
		if err != nil {
			return nil, fmt.Errorf("client %s returned invalid parameters: %w", out.cid, err)
		}

		if sum == nil {
			sum = make([][]float32, len(weights))
			for i, w := range weights {
				sum[i] = make([]float32, len(w))
			}
		}
		if len(weights) != len(sum) {
			return nil, fmt.Errorf("client %s returned %d tensors, expected %d", out.cid, len(weights), len(sum))
		}

		scale := float32(out.res.NumExamples) / float32(totalExamples)
		for i, w := range weights {
			if len(w) != len(sum[i]) {
				return nil, fmt.Errorf("client %s tensor %d has %d values, expected %d", out.cid, i, len(w), len(sum[i]))
			}
			for j, v := range w {
				sum[i][j] += v * scale
			}
		}
	}
	return sum, nil
}
