package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rlrs/libPLUMP/hpyp"
)

var (
	predictCorpusPath string
	predictModelPath  string
	predictTopK       int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Print next-symbol distributions for each position of a corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		corpus, err := hpyp.NewCorpusFromFile(predictCorpusPath)
		if err != nil {
			return err
		}
		model, nm, factory, err := buildModel(corpus.Seq, corpus.NumTypes(), cfg)
		if err != nil {
			return err
		}
		if err := hpyp.NewSerializer(predictModelPath).Load(nm, factory); err != nil {
			return err
		}
		for i := 0; i <= len(corpus.Seq); i++ {
			dist, err := model.PredictiveDistribution(0, i)
			if err != nil {
				return err
			}
			top := topIndices(dist, predictTopK)
			fmt.Printf("pos %d:", i)
			for _, dish := range top {
				fmt.Printf(" %s=%.4f", corpus.Token(dish), dist[dish])
			}
			fmt.Println()
		}
		return nil
	},
}

// topIndices returns the k highest-probability dishes, best first.
func topIndices(dist []float64, k int) []int {
	idx := make([]int, len(dist))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k && i < len(idx); i++ {
		best := i
		for j := i + 1; j < len(idx); j++ {
			if dist[idx[j]] > dist[idx[best]] {
				best = j
			}
		}
		idx[i], idx[best] = idx[best], idx[i]
	}
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

func init() {
	predictCmd.Flags().StringVar(&predictCorpusPath, "corpus", "", "context corpus path")
	predictCmd.Flags().StringVar(&predictModelPath, "model", "model.plmp", "saved model path")
	predictCmd.Flags().IntVar(&predictTopK, "top", 5, "number of candidates to print")
	_ = predictCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(predictCmd)
}
