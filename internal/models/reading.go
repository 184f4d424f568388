package models

import "time"

// Reading 单次轮询产生的单个传感器读数
// 时间戳由数据库在插入时生成，这里不携带
type Reading struct {
	SensorID int64
	Value    float64
}

// Measurement 发布到外部通道的读数
type Measurement struct {
	RunID     string    `json:"run_id"`
	SensorID  int64     `json:"sensor_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
