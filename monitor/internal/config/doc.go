// Package config loads and watches the monitor configuration file (config.yaml).
//
// Top-level types:
//   - Config{Monitor, Metrics, Notify}: full config tree parsed from YAML
//   - MonitorConfig: poll_interval, fetch_timeout, stale_after, top_n, sources []
//   - Source: id, type (backend|prometheus|file), endpoint,
//     performance_endpoint, auth, tls
//   - AuthConfig: mode (apikey|bearer|basic|none), header, key_env,
//     token_env, username, password_env; Key(), Token() and Password()
//     resolve secrets from environment variables
//   - MetricsConfig: listen address of the /metrics server
//   - NotifyConfig, WebhookConfig: cooldown and webhook targets
//     (slack|teams|dingtalk|http)
//
// Load(path) reads the YAML file, applies defaults (30s poll, 10s fetch
// timeout, 5m stale window, top 10, :9464, 15m cooldown), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It watches the parent directory so
// the rename-over pattern of atomic-save editors (vim, VS Code) is seen too.
package config
