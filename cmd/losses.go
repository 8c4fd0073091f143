package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rlrs/libPLUMP/hpyp"
)

var (
	lossesCorpusPath string
	lossesModelPath  string
)

var lossesCmd = &cobra.Command{
	Use:   "losses",
	Short: "Score a corpus against a saved model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		corpus, err := hpyp.NewCorpusFromFile(lossesCorpusPath)
		if err != nil {
			return err
		}
		model, nm, factory, err := buildModel(corpus.Seq, corpus.NumTypes(), cfg)
		if err != nil {
			return err
		}
		if err := hpyp.NewSerializer(lossesModelPath).Load(nm, factory); err != nil {
			return err
		}
		loss, err := model.ComputeLosses(0, len(corpus.Seq))
		if err != nil {
			return err
		}
		fmt.Printf("total %.4f bits, %.4f bits/token over %d tokens\n",
			loss, loss/float64(len(corpus.Seq)), len(corpus.Seq))
		return nil
	},
}

func init() {
	lossesCmd.Flags().StringVar(&lossesCorpusPath, "corpus", "", "corpus to score")
	lossesCmd.Flags().StringVar(&lossesModelPath, "model", "model.plmp", "saved model path")
	_ = lossesCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(lossesCmd)
}
