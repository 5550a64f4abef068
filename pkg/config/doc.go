// Package config loads the tripforge YAML configuration.
//
// A configuration file only needs the keys it changes; everything else keeps
// the values from Default. Environment variables are applied after the file:
//
//	TRIPFORGE_LLM_PROVIDER   gemini or openai
//	TRIPFORGE_LLM_API_KEY    API key for the provider (GEMINI_API_KEY is also read for gemini)
//	TRIPFORGE_STORE_PATH     plan archive database
//	TRIPFORGE_REFERENCE_DIR  reference data directory
//
// A minimal file:
//
//	llm:
//	  provider: openai
//	  base_url: http://localhost:11434/v1
//	resilience:
//	  policies:
//	    rate_limit: {max_retries: 3, base_delay: 10s, max_delay: 2m, strategy: exponential}
//	assembly:
//	  scarcity_factor: 0.8
//
// Validation failures are reported together as ValidationErrors, each naming the
// yaml path of the offending field.
package config
