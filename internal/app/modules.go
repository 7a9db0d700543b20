package app

import (
	"io"

	"github.com/vk/assetgraph/internal/fmp"
	"github.com/vk/assetgraph/internal/httpclient"
	"github.com/vk/assetgraph/internal/llm"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/modules/financials"
	"github.com/vk/assetgraph/modules/http_request"
	"github.com/vk/assetgraph/modules/marketdata"
	"github.com/vk/assetgraph/modules/print"
	"github.com/vk/assetgraph/modules/report"
	"github.com/vk/assetgraph/modules/s3"
)

// coreModules builds the definitive list of all modules that are compiled
// into the assetgraph binary, wired to clients built from cfg. The returned
// closers release their connections.
func coreModules(cfg *Config, outW io.Writer) ([]registry.Module, []io.Closer) {
	fmpClient := fmp.New(fmp.Config{APIKey: cfg.FMPAPIKey, BaseURL: cfg.FMPBaseURL})
	generator := llm.New(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	shared := httpclient.New(0)

	httpModule := &http_request.Module{Client: shared}
	uploadModule := &s3.Module{Client: shared}

	modules := []registry.Module{
		&marketdata.Module{Client: fmpClient},
		&financials.Module{},
		&report.Module{Generator: generator},
		&print.Module{Out: outW},
		httpModule,
		uploadModule,
	}
	return modules, []io.Closer{fmpClient, httpModule, uploadModule}
}
