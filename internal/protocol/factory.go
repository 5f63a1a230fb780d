// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"biosignal-service/internal/model"
)

// CreateSource creates a byte source for the given source type
func CreateSource(sourceType model.SourceType, serialConfig *SerialConfig, simulatorConfig *SimulatorConfig, logger *zap.Logger) (ByteSource, error) {
	switch sourceType {
	case model.SourceTypeSerial:
		if serialConfig == nil {
			return nil, fmt.Errorf("serial configuration is required")
		}
		if serialConfig.Port == "" {
			return nil, fmt.Errorf("serial port is required")
		}
		if !IsSupportedBaudRate(serialConfig.BaudRate) {
			return nil, fmt.Errorf("unsupported baud rate: %d", serialConfig.BaudRate)
		}
		return NewSerialSource(serialConfig, logger), nil

	case model.SourceTypeSimulator:
		if simulatorConfig == nil {
			return nil, fmt.Errorf("simulator configuration is required")
		}
		return NewSimulatorSource(simulatorConfig, logger), nil

	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
