package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/INLOpen/nvattr/ecc"
	"golang.org/x/sync/errgroup"
)

// demoResult counts the outcome of ecc-demo trials.
type demoResult struct {
	trials    atomic.Int64
	corrected atomic.Int64
	failed    atomic.Int64
}

// runECCDemo encodes random messages, flips one random bit of each codeword
// and checks that decoding restores it.
func runECCDemo(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "ecc-demo")
	poly := fs.Uint32("poly", 0x11D, "generator polynomial including its x^P term")
	trials := fs.Int("trials", 1000, "number of random codewords")
	workers := fs.Int("workers", 4, "parallel workers")
	seed := fs.Int64("seed", 0, "random seed (0 picks one from the clock)")
	maxBits := fs.Int("max-bits", 64, "longest message in bits")
	tables := fs.Bool("tables", false, "print the syndrome table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *trials < 1 || *workers < 1 || *maxBits < 1 {
		return fmt.Errorf("ecc-demo: --trials, --workers and --max-bits must be positive")
	}

	code, err := ecc.NewCode(*poly)
	if err != nil {
		return err
	}
	if *tables {
		printSyndromeTable(env, code)
	}
	msgBits := min(*maxBits, code.MaxCodewordBits()-code.CheckBits())
	if msgBits < 1 {
		return fmt.Errorf("ecc-demo: polynomial 0x%X leaves no room for message bits", *poly)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	env.logger.Debug("Running ECC demo", "poly", fmt.Sprintf("0x%X", *poly), "trials", *trials, "workers", *workers, "seed", *seed)

	var res demoResult
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	per := (*trials + *workers - 1) / *workers
	for w := 0; w < *workers; w++ {
		n := min(per, *trials-w*per)
		if n <= 0 {
			break
		}
		rng := rand.New(rand.NewSource(*seed + int64(w)))
		g.Go(func() error {
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := demoTrial(code, rng, msgBits, &res); err != nil {
					env.logger.Warn("ECC demo trial failed", "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "poly 0x%X: %d check bits, codewords up to %d bits\n", code.Polynomial(), code.CheckBits(), code.MaxCodewordBits())
	fmt.Fprintf(env.stdout, "trials: %d, corrected: %d, failed: %d (seed %d)\n",
		res.trials.Load(), res.corrected.Load(), res.failed.Load(), *seed)
	if res.failed.Load() > 0 {
		return fmt.Errorf("ecc-demo: %d trials were not corrected", res.failed.Load())
	}
	return nil
}

func demoTrial(code *ecc.Code, rng *rand.Rand, maxBits int, res *demoResult) error {
	res.trials.Add(1)
	msg := make([]uint8, 1+rng.Intn(maxBits))
	for i := range msg {
		msg[i] = uint8(rng.Intn(2))
	}
	codeword, _, err := code.Encode(msg)
	if err != nil {
		res.failed.Add(1)
		return err
	}
	pos := 1 + rng.Intn(len(codeword))
	received := append([]uint8(nil), codeword...)
	received[len(received)-pos] ^= 1

	corrected, got, err := code.DecodeAndCorrect(received)
	if err != nil {
		res.failed.Add(1)
		return err
	}
	if got != pos {
		res.failed.Add(1)
		return fmt.Errorf("flipped bit %d, decoder located bit %d", pos, got)
	}
	for i := range codeword {
		if corrected[i] != codeword[i] {
			res.failed.Add(1)
			return fmt.Errorf("bit %d differs after correcting bit %d", i, pos)
		}
	}
	res.corrected.Add(1)
	return nil
}

func printSyndromeTable(env *environment, code *ecc.Code) {
	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESIDUE\tPOSITION\tNEXT(0)\tNEXT(1)")
	limit := uint32(code.MaxCodewordBits())
	if limit > 255 {
		limit = 255
	}
	for r := uint32(1); r <= limit; r++ {
		pos, _ := code.Position(r)
		fmt.Fprintf(tw, "0x%X\t%d\t0x%X\t0x%X\n", r, pos, code.Next(r, 0), code.Next(r, 1))
	}
	tw.Flush()
}
