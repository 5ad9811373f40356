package ml_trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"hddpredict/config"
	"hddpredict/dataset"
	"hddpredict/forest"
	"hddpredict/metrics"
	"hddpredict/nn"
	"hddpredict/observer"

	"go.uber.org/zap"
)

// ErrUnknownClassifier is returned for a classifier name other than
// RandomForest, TCN or LSTM.
var ErrUnknownClassifier = errors.New("unknown classifier")

// Outcome is the result of one classification run.
type Outcome struct {
	Classifier  string
	Epochs      int
	Predictions []int
	Report      *metrics.Result
	// Observer is set for the neural classifiers.
	Observer *observer.Observer
}

// Classification trains the named classifier on split.Train and evaluates it
// on split.Test.
func (m *MLTrainer) Classification(ctx context.Context, classifier string, split *dataset.Split) (*Outcome, error) {
	m.logger.Info("Classification is starting", zap.String("classifier", classifier))
	var (
		out *Outcome
		err error
	)
	switch classifier {
	case config.ClassifierRandomForest:
		out, err = m.randomForestClassification(ctx, split)
	case config.ClassifierTCN:
		out, err = m.tcnClassification(ctx, split)
	case config.ClassifierLSTM:
		out, err = m.lstmClassification(ctx, split)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClassifier, classifier)
	}
	if err != nil {
		return nil, fmt.Errorf("%s classification failed: %w", classifier, err)
	}
	out.Classifier = classifier
	return out, nil
}

func (m *MLTrainer) randomForestClassification(ctx context.Context, split *dataset.Split) (*Outcome, error) {
	t := m.cfg.Training
	train := append(dataset.Set(nil), split.Train...)
	rng := rand.New(rand.NewSource(t.Seed))
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })

	f := forest.New(forest.Config{
		NEstimators:     t.RandomForest.NEstimators,
		MinSamplesSplit: t.RandomForest.MinSamplesSplit,
		MaxDepth:        t.RandomForest.MaxDepth,
		RandomState:     t.RandomForest.RandomState,
		Workers:         t.RandomForest.Workers,
	})
	if err := f.Fit(ctx, train.Flatten(), train.Labels()); err != nil {
		return nil, err
	}

	preds := f.Predict(split.Test.Flatten())
	report, err := metrics.Report(split.Test.Labels(), preds, t.Metrics)
	if err != nil {
		return nil, err
	}
	return &Outcome{Predictions: preds, Report: report}, nil
}

func (m *MLTrainer) tcnClassification(ctx context.Context, split *dataset.Split) (*Outcome, error) {
	c := m.cfg.Training.TCN
	_, _, inputs := split.Train.Shape()
	net, err := nn.NewTCN(inputs, c.Channels, c.KernelSize, c.Dropout, c.NumClasses, m.cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	return m.trainNet(ctx, net, c.NetConfig, split)
}

func (m *MLTrainer) lstmClassification(ctx context.Context, split *dataset.Split) (*Outcome, error) {
	c := m.cfg.Training.LSTM
	_, _, inputs := split.Train.Shape()
	net := nn.NewFPLSTM(c.LSTMHiddenS, c.FC1HiddenS, inputs, c.NumClasses, c.Dropout, m.cfg.Training.Seed)
	return m.trainNet(ctx, net, c.NetConfig, split)
}

func (m *MLTrainer) trainNet(ctx context.Context, net nn.Model, c config.NetConfig, split *dataset.Split) (*Outcome, error) {
	obs := observer.NewObserver(c.Patience, c.MinDelta)
	res, err := nn.Train(ctx, net, split.Train, split.Test, nn.TrainConfig{
		Epochs:    c.Epochs,
		BatchSize: c.BatchSize,
		LR:        c.LR,
		Seed:      m.cfg.Training.Seed,
		Metrics:   m.cfg.Training.Metrics,
	}, obs, m.logger)
	if err != nil {
		return nil, err
	}

	loss, best := obs.Best()
	m.logger.Info("Training finished",
		zap.Int("epochs", res.Epochs),
		zap.Int("best_epoch", best),
		zap.Float64("best_loss", loss),
		zap.Duration("epoch_p50", obs.P50()),
		zap.Duration("epoch_p95", obs.P95()))
	return &Outcome{
		Epochs:      res.Epochs,
		Predictions: res.Predictions,
		Report:      res.Report,
		Observer:    obs,
	}, nil
}
