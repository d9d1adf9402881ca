package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainNames are display names for the chains the default registry reaches.
var ChainNames = map[ChainId]string{
	1:          "Ethereum",
	10:         "Optimism",
	40:         "Telos",
	56:         "BSC",
	137:        "Polygon",
	1088:       "Metis",
	1329:       "Sei",
	2222:       "Kava",
	5000:       "Mantle",
	8217:       "Klaytn",
	8453:       "Base",
	42161:      "Arbitrum",
	43114:      "Avalanche",
	59144:      "Linea",
	534352:     "Scroll",
	1313161554: "Aurora",
}

// LayerZeroV2Eids are LayerZero V2 endpoint ids.
var LayerZeroV2Eids = ProtocolTable{
	40:         30199,
	1:          30101,
	56:         30102,
	43114:      30106,
	137:        30109,
	42161:      30110,
	10:         30111,
	8453:       30184,
	534352:     30214,
	5000:       30181,
	59144:      30183,
	1329:       30280,
	2222:       30177,
	8217:       30150,
	1088:       30151,
	1313161554: 30211,
}

// LayerZeroV1ChainIds are LayerZero V1 chain ids.
var LayerZeroV1ChainIds = ProtocolTable{
	40:    199,
	1:     101,
	56:    102,
	43114: 106,
	137:   109,
	42161: 110,
	10:    111,
	8453:  184,
}

// WrappedBridgeAddress is the LayerZero V1 wrapped token bridge, deployed at the same address everywhere.
var WrappedBridgeAddress = common.HexToAddress("0x9c5ebCbE531aA81bD82013aBF97401f5C6111d76")

func addr(hex string) common.Address {
	return common.HexToAddress(hex)
}

func oftPeers(peers map[ChainId]string) map[ChainId]Peer {
	out := make(map[ChainId]Peer, len(peers))
	for chain, contract := range peers {
		out[chain] = Peer{Contract: addr(contract)}
	}
	return out
}

func poolPeers(peers map[ChainId]string) map[ChainId]Peer {
	out := make(map[ChainId]Peer, len(peers))
	for chain, contract := range peers {
		out[chain] = Peer{Contract: addr(contract), ResolvePoolToken: true}
	}
	return out
}

// DefaultMechanismConfigs returns the production route tables.
func DefaultMechanismConfigs() []MechanismConfig {
	return []MechanismConfig{
		nativeOFTConfig(),
		oftAdapterConfig(),
		stargatePoolConfig(),
		wrappedBridgeConfig(),
	}
}

// DefaultRegistry builds a registry from DefaultMechanismConfigs.
func DefaultRegistry() (*RouteRegistry, error) {
	registry := NewRouteRegistry()
	if err := registry.BuildRegistry(DefaultMechanismConfigs()); err != nil {
		return nil, fmt.Errorf("failed to build default registry: %w", err)
	}
	return registry, nil
}

func nativeOFTConfig() MechanismConfig {
	peers := oftPeers(map[ChainId]string{
		1:     "0x193f4A4a6ea24102F49b931DEeeb931f6E32405d",
		56:    "0x193f4A4a6ea24102F49b931DEeeb931f6E32405d",
		137:   "0x193f4A4a6ea24102F49b931DEeeb931f6E32405d",
		42161: "0x193f4A4a6ea24102F49b931DEeeb931f6E32405d",
		8453:  "0x7252c865c05378Ffc15120F428dd65804dD0CE63",
		43114: "0xed667dC80a45b77305Cc395DB56D997597Dc6DdD",
	})
	peers[TelosChainId] = Peer{
		Contract: addr("0xD102cE6A4dB07D247fcc28F366A623Df0938CA9E"),
		Native:   true,
	}

	return MechanismConfig{
		Mechanism: MechanismNativeOFT,
		Protocol:  LayerZeroV2Eids,
		Tokens: []TokenRouteConfig{
			{
				Symbol:    "TLOS",
				Decimals:  18,
				HomeChain: TelosChainId,
				Direction: DirectionAny,
				Peers:     peers,
			},
		},
	}
}

func oftAdapterConfig() MechanismConfig {
	const wbtc = "0x0555E30da8f98308EdB960aa94C0Db47230d2B9c"
	return MechanismConfig{
		Mechanism: MechanismOFTAdapter,
		Protocol:  LayerZeroV2Eids,
		Tokens: []TokenRouteConfig{
			{
				Symbol:    "WBTC",
				Decimals:  8,
				HomeChain: TelosChainId,
				Direction: DirectionViaHome,
				Peers: oftPeers(map[ChainId]string{
					40:    wbtc,
					1:     wbtc,
					56:    wbtc,
					43114: wbtc,
					8453:  wbtc,
					10:    "0xc3f854b2970f8727d28527ece33176fac67fef48",
				}),
			},
		},
	}
}

func stargatePoolConfig() MechanismConfig {
	usdc := poolPeers(map[ChainId]string{
		1:          "0xc026395860Db2d07ee33e05fE50ed7bD583189C7",
		56:         "0x962Bd449E630b0d928f308Ce63f1A21F02576057",
		43114:      "0x5634c4a5FEd09819E3c46D86A965Dd9447d86e47",
		137:        "0x9Aa02D4Fae7F58b8E8f34c66E756cC734DAc7fe4",
		42161:      "0xe8CDF27AcD73a434D661C84887215F7598e7d0d3",
		10:         "0xcE8CcA271Ebc0533920C83d39F417ED6A0abB7D0",
		8453:       "0x27a16dc786820B16E5c9028b75B99F6f604b5d26",
		534352:     "0x3Fc69CC4A842838bCDC9499178740226062b14E4",
		5000:       "0xAc290Ad4e0c891FDc295ca4F0a6214cf6dC6acDC",
		1313161554: "0x81F6138153d473E8c5EcebD3DC8Cd4903506B075",
		1329:       "0x45d417612e177672958dC0537C45a8f8d754Ac2E",
	})
	usdc[TelosChainId] = Peer{
		Contract: addr("0x2086f755A6d9254045C257ea3d382ef854849B0f"),
		Token:    addr("0xF1815bd50389c46847f0Bda824eC8da914045D14"),
	}

	usdt := poolPeers(map[ChainId]string{
		1:     "0x933597a323Eb81cAe705C5bC29985172fd5A3973",
		56:    "0x138EB30f73BC423c6455C53df6D89CB01d9eBc63",
		43114: "0x12dC9256Acc9895B076f6638D628382881e62CeE",
		137:   "0xd47b03ee6d86Cf251ee7860FB2ACf9f91B9fD4d7",
		42161: "0xcE8CcA271Ebc0533920C83d39F417ED6A0abB7D0",
		10:    "0x19cFCE47eD54a88614648DC3f19A5980097007dD",
		5000:  "0xB715B85682B731dB9D5063187C450095c91C57FC",
		2222:  "0x41A5b0470D96656Fb3e8f68A218b39AdBca3420b",
		1088:  "0x4dCBFC0249e8d5032F89D6461218a9D2eFff5125",
		1329:  "0x0dB9afb4C33be43a0a0e396Fd1383B4ea97aB10a",
	})
	usdt[TelosChainId] = Peer{
		Contract: addr("0x3a1293Bdb83bBbDd5Ebf4fAc96605aD2021BbC0f"),
		Token:    addr("0x674843C06FF83502ddb4D37c2E09C01cdA38cbc8"),
	}

	eth := poolPeers(map[ChainId]string{
		1:      "0x77b2043768d28E9C9aB44E1aBfC95944bcE57931",
		8453:   "0xdc181Bd607330aeeBEF6ea62e03e5e1Fb4B6F7C7",
		42161:  "0xA45B5130f36CDcA45667738e2a258AB09f4A5f7F",
		10:     "0xe8CDF27AcD73a434D661C84887215F7598e7d0d3",
		59144:  "0x81F6138153d473E8c5EcebD3DC8Cd4903506B075",
		5000:   "0x4c1d3Fc3fC3c177c3b633427c2F769276c547463",
		534352: "0xC2b638Cb5042c1B3c5d5C969361fB50569840583",
	})
	eth[TelosChainId] = Peer{
		Contract: addr("0xA272fFe20cFfe769CdFc4b63088DCD2C82a2D8F9"),
		Token:    addr("0xBAb93B7ad7fE8692A878B95a8e689423437cc500"),
	}

	return MechanismConfig{
		Mechanism: MechanismStargatePool,
		Protocol:  LayerZeroV2Eids,
		Tokens: []TokenRouteConfig{
			{Symbol: "USDC", Decimals: 6, Pooled: true, HomeChain: TelosChainId, Direction: DirectionViaHome, Peers: usdc},
			{Symbol: "USDT", Decimals: 6, Pooled: true, HomeChain: TelosChainId, Direction: DirectionViaHome, Peers: usdt},
			{Symbol: "ETH", Decimals: 18, SharedDecimals: 6, Pooled: true, HomeChain: TelosChainId, Direction: DirectionViaHome, Peers: eth},
		},
	}
}

func wrappedBridgeConfig() MechanismConfig {
	wrapped := func(telosToken string, remote map[ChainId]string) map[ChainId]Peer {
		peers := make(map[ChainId]Peer, len(remote)+1)
		peers[TelosChainId] = Peer{Contract: WrappedBridgeAddress, Token: addr(telosToken)}
		for chain, token := range remote {
			peers[chain] = Peer{Contract: addr(token)}
		}
		return peers
	}

	return MechanismConfig{
		Mechanism: MechanismWrappedBridge,
		Protocol:  LayerZeroV1ChainIds,
		Tokens: []TokenRouteConfig{
			{
				Symbol: "USDC", Decimals: 6, HomeChain: TelosChainId, Direction: DirectionFromHome,
				Peers: wrapped("0x8D97Cea50351Fb4329d591682b148D43a0C3611b", map[ChainId]string{
					1:     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
					56:    "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
					137:   "0x452B50B5E5A039084fb33d20ba0213D4f7E84124",
					42161: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
				}),
			},
			{
				Symbol: "USDT", Decimals: 6, HomeChain: TelosChainId, Direction: DirectionFromHome,
				Peers: wrapped("0x975Ed13fa16857E83e7C493C7741D556eaaD4A3f", map[ChainId]string{
					1:   "0xdAC17F958D2ee523a2206206994597C13D831ec7",
					137: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
				}),
			},
			{
				Symbol: "BTC.b", Decimals: 8, HomeChain: TelosChainId, Direction: DirectionFromHome,
				Peers: wrapped("0x7627b27594bc71e6Ab0fCE755aE8931EB1E12DAC", map[ChainId]string{
					43114: "0x152b9d0FdC40C096757F570A51E494bd4b943E50",
				}),
			},
			{
				Symbol: "ETH", Decimals: 18, HomeChain: TelosChainId, Direction: DirectionFromHome,
				Peers: wrapped("0xA0fB8cd450c8Fd3a11901876cD5f17eB47C6bc50", map[ChainId]string{
					1:     "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
					137:   "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
					42161: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
				}),
			},
			{
				Symbol: "BNB", Decimals: 18, HomeChain: TelosChainId, Direction: DirectionFromHome,
				Peers: wrapped("0x26Ed0F16e777C94A6FE798F9E20298034930Bae8", map[ChainId]string{
					56: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
				}),
			},
		},
	}
}
