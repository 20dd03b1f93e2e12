// solareval 命令行光伏测算
// 本地直接调用测算引擎，或通过 --remote 调用 SolarHealth 的 gRPC 服务
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/wyfcoding/solarhealth/internal/evaluation/application"
	"github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	evalgrpc "github.com/wyfcoding/solarhealth/internal/evaluation/interfaces/grpc"
	"github.com/wyfcoding/solarhealth/pkg/grpcclient"
)

type output struct {
	Evaluation domain.Evaluation `json:"evaluation"`
	Viable     bool              `json:"viable"`
}

func main() {
	var (
		rooms       = pflag.Int("rooms", 0, "number of rooms")
		equipment   = pflag.Int("equipment", 0, "number of medical equipment units")
		consumption = pflag.String("consumption", "0", "monthly consumption in kWh")
		irradiance  = pflag.String("irradiance", "4.5", "irradiance in kWh/m2")
		remote      = pflag.String("remote", "", "evaluate through the gRPC service at host:port")
		timeout     = pflag.Duration("timeout", 5*time.Second, "remote call timeout")
	)
	pflag.Parse()

	if err := run(*rooms, *equipment, *consumption, *irradiance, *remote, *timeout, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "solareval: %v\n", err)
		os.Exit(1)
	}
}

func run(rooms, equipment int, consumption, irradiance, remote string, timeout time.Duration, w io.Writer) error {
	cmd := application.EvaluateCommand{NumRooms: rooms, NumEquipment: equipment}
	var err error
	if cmd.MonthlyConsumptionKWh, err = decimal.NewFromString(consumption); err != nil {
		return fmt.Errorf("invalid --consumption %q: %w", consumption, err)
	}
	if cmd.IrradianceKWhM2, err = decimal.NewFromString(irradiance); err != nil {
		return fmt.Errorf("invalid --irradiance %q: %w", irradiance, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out output
	if remote != "" {
		conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
			Target:         remote,
			ConnTimeout:    int(timeout / time.Second),
			RequestTimeout: int(timeout / time.Second),
			MaxRetries:     2,
			RetryDelay:     200,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", remote, err)
		}
		defer conn.Close()

		ev, viable, err := evalgrpc.NewClient(conn).Evaluate(ctx, cmd)
		if err != nil {
			return err
		}
		out = output{Evaluation: *ev, Viable: viable}
	} else {
		svc := application.NewEvaluationService(nil, application.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		ev, err := svc.Evaluate(ctx, cmd)
		if err != nil {
			return err
		}
		out = output{Evaluation: *ev, Viable: ev.Viable(cmd.MonthlyConsumptionKWh)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
