package caption

import "go.uber.org/fx"

var Module = fx.Module("caption.client",
	fx.Provide(NewClient),
)
