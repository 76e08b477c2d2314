package plugin

import "github.com/BDNK1/flowtest/runtime"

type Plugin = runtime.Plugin

type Initializer = runtime.Initializer

type Shutdowner = runtime.Shutdowner
