package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry        = (*ProviderRegistry)(nil)
	_ Provider        = UnimplementedProvider{}
	_ Provider        = (*instrumentedProvider)(nil)
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = MapConfigLoader{}

	_ Resource = Customer{}
	_ Resource = Checkout{}
	_ Resource = Subscription{}
	_ Resource = Payment{}
	_ Resource = Refund{}
	_ Resource = Invoice{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
