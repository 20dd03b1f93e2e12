// Package model 从 JSON 文件加载训练好的模型参数.
// 模型文件只包含系数，加载后不可变，可并发使用。
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/wyfcoding/solarhealth/internal/tariff/domain"
)

// LinearModel 线性回归：intercept + Σ coef·feature
type LinearModel struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Features     []string           `json:"features"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// Predict 实现 domain.ConsumptionPredictor；缺失的特征按 0 计
func (m *LinearModel) Predict(f domain.Features) float64 {
	y := m.Intercept
	for _, name := range m.Features {
		y += m.Coefficients[name] * f[name]
	}
	return y
}

func (m *LinearModel) validate() error {
	if len(m.Features) == 0 {
		return errors.New("linear model has no features")
	}
	for _, name := range m.Features {
		if _, ok := m.Coefficients[name]; !ok {
			return fmt.Errorf("missing coefficient for feature %q", name)
		}
	}
	return nil
}

type historyJSON struct {
	// 7×24，null 表示没有样本
	Profile  [][]*float64 `json:"profile"`
	Mean     float64      `json:"mean"`
	DailyStd float64      `json:"daily_std"`
}

func (h historyJSON) toDomain() (*domain.History, error) {
	if len(h.Profile) != 7 {
		return nil, fmt.Errorf("history profile must have 7 weekdays, got %d", len(h.Profile))
	}
	out := &domain.History{Mean: h.Mean, DailyStd: h.DailyStd}
	for d, hours := range h.Profile {
		if len(hours) != 24 {
			return nil, fmt.Errorf("history profile day %d must have 24 hours, got %d", d, len(hours))
		}
		for hr, v := range hours {
			if v == nil {
				out.Profile[d][hr] = math.NaN()
				continue
			}
			out.Profile[d][hr] = *v
		}
	}
	return out, nil
}

// ConsumptionArtifact 用电量预测模型与历史摘要
type ConsumptionArtifact struct {
	Model   *LinearModel
	History *domain.History
}

// LoadConsumptionArtifact 读取用电量模型文件
func LoadConsumptionArtifact(path string) (*ConsumptionArtifact, error) {
	var raw struct {
		Model   LinearModel `json:"model"`
		History historyJSON `json:"history"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	if err := raw.Model.validate(); err != nil {
		return nil, fmt.Errorf("invalid consumption model %s: %w", path, err)
	}
	history, err := raw.History.toDomain()
	if err != nil {
		return nil, fmt.Errorf("invalid consumption model %s: %w", path, err)
	}
	return &ConsumptionArtifact{Model: &raw.Model, History: history}, nil
}

// LogisticModel 二分类逻辑回归，输入顺序见 domain.PeakInput.Vector
type LogisticModel struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Threshold    float64   `json:"threshold"`
}

// Probability 正类概率
func (m *LogisticModel) Probability(x []float64) float64 {
	z := m.Intercept
	for i, w := range m.Coefficients {
		z += w * x[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// Classify 实现 domain.PeakShavingClassifier
func (m *LogisticModel) Classify(in domain.PeakInput) (bool, float64) {
	p := m.Probability(in.Vector())
	return p >= m.Threshold, p
}

// LoadPeakShavingModel 读取削峰分类模型文件
func LoadPeakShavingModel(path string) (*LogisticModel, error) {
	var m LogisticModel
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	if len(m.Coefficients) != 4 {
		return nil, fmt.Errorf("invalid peak shaving model %s: expected 4 coefficients, got %d", path, len(m.Coefficients))
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	return &m, nil
}

func readJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	return nil
}
