package cmd

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rlrs/libPLUMP/hpyp"
)

var (
	trainCorpusPath string
	trainModelPath  string
	trainVariant    string
	trainSweeps     int
	trainMaxDepth   int
	trainSeed       int64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model on a corpus and save it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("variant") {
			cfg.Variant = trainVariant
		}
		if cmd.Flags().Changed("sweeps") {
			cfg.Sweeps = trainSweeps
		}
		if cmd.Flags().Changed("depth") {
			cfg.MaxDepth = trainMaxDepth
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = trainSeed
		}

		corpus, err := hpyp.NewCorpusFromFile(trainCorpusPath)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"tokens":  len(corpus.Seq),
			"types":   corpus.NumTypes(),
			"variant": cfg.Variant,
		}).Info("corpus loaded")

		model, nm, factory, err := buildModel(corpus.Seq, corpus.NumTypes(), cfg)
		if err != nil {
			return err
		}

		bar := pb.StartNew(cfg.Sweeps)
		for sweep := 0; sweep < cfg.Sweeps; sweep++ {
			if err := model.RunGibbsSampler(cfg.ResampleHyperparameters); err != nil {
				return err
			}
			bar.Increment()
		}
		bar.Finish()

		loss, err := model.ComputeLosses(0, len(corpus.Seq))
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"bits":           loss,
			"bits-per-token": loss / float64(len(corpus.Seq)),
		}).Info("training finished")

		return hpyp.NewSerializer(trainModelPath).Save(nm, factory)
	},
}

// buildModel wires the factory, node manager, parameters and model from a
// config.
func buildModel(seq []int, numTypes int, cfg Config) (*hpyp.Model, *hpyp.NodeManager, *hpyp.Factory, error) {
	variant, err := hpyp.ParseVariant(cfg.Variant)
	if err != nil {
		return nil, nil, nil, err
	}
	factory, err := hpyp.NewFactory(variant)
	if err != nil {
		return nil, nil, nil, err
	}
	nm, err := hpyp.NewNodeManager(factory, numTypes, cfg.MaxDepth)
	if err != nil {
		return nil, nil, nil, err
	}
	params, err := hpyp.NewSimpleParameters(cfg.MaxDepth,
		cfg.InitialDiscount, cfg.InitialConcentration,
		cfg.GammaA, cfg.GammaB, cfg.BetaA, cfg.BetaB)
	if err != nil {
		return nil, nil, nil, err
	}
	model, err := hpyp.NewModel(seq, nm, params, cfg.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, nm, factory, nil
}

func init() {
	trainCmd.Flags().StringVar(&trainCorpusPath, "corpus", "", "training corpus path (whitespace-tokenized)")
	trainCmd.Flags().StringVar(&trainModelPath, "model", "model.plmp", "output model path")
	trainCmd.Flags().StringVar(&trainVariant, "variant", "full", "restaurant variant")
	trainCmd.Flags().IntVar(&trainSweeps, "sweeps", 10, "number of Gibbs sweeps")
	trainCmd.Flags().IntVar(&trainMaxDepth, "depth", 8, "maximum context depth")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 1, "sampler seed")
	_ = trainCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(trainCmd)
}
